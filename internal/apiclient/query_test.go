package apiclient

import "testing"

func TestBuildQueryString(t *testing.T) {
	status := "open"
	var missing *string

	testCases := []struct {
		name   string
		params Params
		want   string
	}{
		{name: "empty", params: nil, want: ""},
		{name: "all undefined", params: Params{P("a", nil), P("b", missing)}, want: ""},
		{name: "skips nil keeps order", params: Params{P("a", 1), P("b", nil), P("c", nil), P("d", "x")}, want: "?a=1&d=x"},
		{name: "dereferences pointers", params: Params{P("status", &status), P("page", 2)}, want: "?status=open&page=2"},
		{name: "coerces bools", params: Params{P("banned", false)}, want: "?banned=false"},
		{name: "escapes values", params: Params{P("q", "a b&c")}, want: "?q=a+b%26c"},
	}

	for _, tc := range testCases {
		if got := BuildQueryString(tc.params); got != tc.want {
			t.Fatalf("%s: BuildQueryString() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

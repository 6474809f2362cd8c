package apiclient

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
)

type Param struct {
	Key   string
	Value any
}

// Params keeps insertion order, which a Go map cannot.
type Params []Param

func P(key string, value any) Param {
	return Param{Key: key, Value: value}
}

// BuildQueryString renders the defined entries of params as "?k=v&...".
// Nil values and nil pointers are skipped; pointers are dereferenced.
// An empty result is returned as "".
func BuildQueryString(params Params) string {
	var b strings.Builder
	for _, p := range params {
		value, ok := scalar(p.Value)
		if !ok {
			continue
		}
		if b.Len() == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(value))
	}
	return b.String()
}

func scalar(value any) (string, bool) {
	if value == nil {
		return "", false
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}
	return fmt.Sprint(rv.Interface()), true
}

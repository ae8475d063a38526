// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package udata

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Reserved parameter keys.
const (
	// URLPathKey is the routing hint: requests go to {url}/{url_path}/{method}.
	URLPathKey = "url_path"
	// IntParamKey lists the result columns to be typed as int64.
	IntParamKey = "int_param"
	// FloatParamKey lists the result columns to be typed as float64.
	FloatParamKey = "float_param"
	// HTTPMethodKey selects POST when set to "POST". It is not sent.
	HTTPMethodKey = "http_method"
)

// Params of a single request. Values may be nil (not sent), strings, numbers,
// booleans or slices of those (sent as repeated keys).
type Params map[string]interface{}

// Copy creates a shallow copy of the parameters.
func (p Params) Copy() Params {
	res := make(Params, len(p))
	for k, v := range p {
		res[k] = v
	}
	return res
}

func (p Params) str(key string) string {
	s, _ := p[key].(string)
	return s
}

func (p Params) strs(key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []interface{}:
		res := make([]string, 0, len(v))
		for _, x := range v {
			res = append(res, fmt.Sprint(x))
		}
		return res
	}
	return nil
}

// URLPath is the routing hint; "" when absent.
func (p Params) URLPath() string { return p.str(URLPathKey) }

// IntFields are the names of the columns to be typed as int64.
func (p Params) IntFields() []string { return p.strs(IntParamKey) }

// FloatFields are the names of the columns to be typed as float64.
func (p Params) FloatFields() []string { return p.strs(FloatParamKey) }

// HTTPMethod is POST when requested, GET otherwise.
func (p Params) HTTPMethod() string {
	if strings.EqualFold(p.str(HTTPMethodKey), http.MethodPost) {
		return http.MethodPost
	}
	return http.MethodGet
}

// formatParam prints a scalar value the way the service expects it.
func formatParam(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		if x {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// Values encodes the parameters as URL query values. Nil values are skipped,
// and an empty slice encodes nothing.
func (p Params) Values() url.Values {
	v := make(url.Values)
	for k, x := range p {
		if k == HTTPMethodKey {
			continue
		}
		switch s := x.(type) {
		case nil:
		case []string:
			for _, e := range s {
				v.Add(k, e)
			}
		case []int:
			for _, e := range s {
				v.Add(k, strconv.Itoa(e))
			}
		case []int64:
			for _, e := range s {
				v.Add(k, strconv.FormatInt(e, 10))
			}
		case []float64:
			for _, e := range s {
				v.Add(k, formatParam(e))
			}
		case []interface{}:
			for _, e := range s {
				if e != nil {
					v.Add(k, formatParam(e))
				}
			}
		default:
			v.Set(k, formatParam(x))
		}
	}
	return v
}

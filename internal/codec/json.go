// Package codec provides the JSON codec used for every envelope the proxy
// writes and every payload it reads.
package codec

import (
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
)

// api mirrors encoding/json behavior (HTML escaping, sorted map keys) so
// responses are byte-stable across runs.
var api = sonic.ConfigStd

// Marshal encodes v as JSON.
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// Unmarshal decodes JSON data into v.
func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

// Serializer implements echo.JSONSerializer on top of sonic.
type Serializer struct{}

var _ echo.JSONSerializer = Serializer{}

// Serialize writes i to the response.
func (Serializer) Serialize(c echo.Context, i any, indent string) error {
	enc := api.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

// Deserialize reads the request body into i.
func (Serializer) Deserialize(c echo.Context, i any) error {
	if err := api.NewDecoder(c.Request().Body).Decode(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("decode json: %v", err)).SetInternal(err)
	}
	return nil
}

// MIMEJSON is the content type of every envelope.
const MIMEJSON = "application/json; charset=utf-8"

// JSON writes v with status code and an explicit UTF-8 content type.
func JSON(c echo.Context, code int, v any) error {
	c.Response().Header().Set(echo.HeaderContentType, MIMEJSON)
	return c.JSON(code, v)
}

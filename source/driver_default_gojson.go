// Package source switches the default goserde JSON driver to goccy/go-json
// when imported.
package source

import (
	goserde "github.com/reoring/goserde"
	drvgojson "github.com/reoring/goserde/source/gojson"
)

func init() { goserde.SetJSONDriver(drvgojson.Driver()) }

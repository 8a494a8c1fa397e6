package api

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/seantiz/groundstate/internal/runconfig"
)

var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	// rawjson accepts a non-empty, well-formed JSON document.
	if err := requestValidate.RegisterValidation("rawjson", func(fl validator.FieldLevel) bool {
		raw, ok := fl.Field().Interface().(json.RawMessage)
		return ok && len(raw) > 0 && json.Valid(raw)
	}); err != nil {
		panic(err)
	}
}

// createRunRequest is the JSON body for POST /v1/runs and /v1/runs/async.
//
// Config is a configuration object when Format is json (or empty). For yaml
// and hcl it is a JSON string holding the document text.
type createRunRequest struct {
	Config   json.RawMessage `json:"config" validate:"required,rawjson"`
	Format   string          `json:"format" validate:"omitempty,oneof=json yaml hcl"`
	Operator json.RawMessage `json:"operator" validate:"required,rawjson"`
}

// configuration decodes the request's configuration in its declared format.
func (req createRunRequest) configuration() (runconfig.Configuration, error) {
	format := runconfig.Format(req.Format)
	if format == "" || format == runconfig.FormatJSON {
		return runconfig.DecodeJSON(req.Config)
	}
	var doc string
	if err := json.Unmarshal(req.Config, &doc); err != nil {
		return runconfig.Configuration{}, err
	}
	return runconfig.Decode([]byte(doc), format)
}

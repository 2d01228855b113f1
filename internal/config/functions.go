package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// evalContext exposes helpers that keep secrets out of the config file:
//
//	api_secret = env("FVA_API_SECRET")
//	bot_token  = env_or("TELEGRAM_BOT_TOKEN", "")
//	api_key    = file("/run/secrets/fva_key")
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"env":    envFunc,
			"env_or": envOrFunc,
			"file":   fileFunc,
		},
	}
}

var envFunc = function.New(&function.Spec{
	Description: "Returns the value of an environment variable; fails when it is unset.",
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		name := args[0].AsString()
		val, ok := os.LookupEnv(name)
		if !ok {
			return cty.NilVal, fmt.Errorf("environment variable %s is not set", name)
		}
		return cty.StringVal(val), nil
	},
})

var envOrFunc = function.New(&function.Spec{
	Description: "Returns the value of an environment variable or a fallback.",
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
		{Name: "fallback", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		if val, ok := os.LookupEnv(args[0].AsString()); ok {
			return cty.StringVal(val), nil
		}
		return args[1], nil
	},
})

var fileFunc = function.New(&function.Spec{
	Description: "Returns the trimmed contents of a file.",
	Params: []function.Parameter{
		{Name: "path", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		data, err := os.ReadFile(args[0].AsString())
		if err != nil {
			return cty.NilVal, err
		}
		return cty.StringVal(strings.TrimRight(string(data), "\r\n")), nil
	},
})

package connectors

// Provider kinds.
const (
	KindEcho = "echo"
	KindHTTP = "http"
)

// Definition describes how to reach a provider. It is loaded from the
// integration catalog.
type Definition struct {
	Kind    string                  `json:"kind" yaml:"kind"`
	BaseURL string                  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Test    *OperationDef           `json:"test,omitempty" yaml:"test,omitempty"`
	Ops     map[string]OperationDef `json:"operations,omitempty" yaml:"operations,omitempty"`
}

// OperationDef is a templated HTTP request plus JMESPath extractors for the
// response. Strings may reference {{payload.x}}, {{secrets.x}} and
// {{config.x}}.
type OperationDef struct {
	Method  string            `json:"method" yaml:"method"`
	Path    string            `json:"path" yaml:"path"`
	Summary string            `json:"summary,omitempty" yaml:"summary,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty" yaml:"query,omitempty"`
	Body    map[string]any    `json:"body,omitempty" yaml:"body,omitempty"`
	// Success, when set, must evaluate truthy on the response body.
	Success string `json:"success,omitempty" yaml:"success,omitempty"`
	// Error extracts the provider's failure message.
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
	Result string `json:"result,omitempty" yaml:"result,omitempty"`
	Tokens string `json:"tokens,omitempty" yaml:"tokens,omitempty"`
	Cost   string `json:"cost,omitempty" yaml:"cost,omitempty"`
}

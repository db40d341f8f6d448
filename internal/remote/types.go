package remote

// Configuration is the operator-supplied credential and documentation
// consumed by the assistant service.
type Configuration struct {
	Credential    string `json:"apikey"`
	Documentation string `json:"doc"`
}

// ChatReply is the service's answer to one chat turn. Both fields may be
// empty when the service omits them.
type ChatReply struct {
	SessionID string `json:"session"`
	Reply     string `json:"resposta"`
}

// chatRequest is the POST /chat/ body. Session is always sent, empty when
// no session has been assigned yet.
type chatRequest struct {
	Message string `json:"mensagem"`
	Session string `json:"session"`
}

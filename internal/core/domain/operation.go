package domain

import (
	"encoding/json"
	"fmt"
)

// OperationKind is one of the confirmable operations.
type OperationKind int

const (
	OperationSendUserOp OperationKind = iota
	OperationPersonalSign
	OperationSignTypedData
)

// Event bus topics of the confirmation pipeline.
const (
	TopicSendUserOp          = "sendUserOp"
	TopicSendUserOpResult    = "sendUserOpResult"
	TopicPersonalSign        = "personalSign"
	TopicPersonalSignResult  = "personalSignResult"
	TopicSignTypedData       = "signTypedData"
	TopicSignTypedDataResult = "signTypedDataResult"
	// TopicCloseConfirmation asks the confirmation UI to close without
	// emitting a result.
	TopicCloseConfirmation = "closeConfirmation"
	// TopicCancelOperation tells the confirmation UI that the caller of the
	// pending operation went away. The payload is the PendingOperation.
	TopicCancelOperation = "cancelOperation"
	// TopicConfirmationSession carries the state of confirmation sessions to
	// the confirmation UI.
	TopicConfirmationSession = "confirmationSession"
)

var operationTopics = map[OperationKind][2]string{
	OperationSendUserOp:    {TopicSendUserOp, TopicSendUserOpResult},
	OperationPersonalSign:  {TopicPersonalSign, TopicPersonalSignResult},
	OperationSignTypedData: {TopicSignTypedData, TopicSignTypedDataResult},
}

// ResultTopics are the topics confirmable operations await.
var ResultTopics = []string{
	TopicSendUserOpResult, TopicPersonalSignResult, TopicSignTypedDataResult,
}

func (k OperationKind) String() string {
	switch k {
	case OperationSendUserOp:
		return "SendUserOperation"
	case OperationPersonalSign:
		return "PersonalSign"
	case OperationSignTypedData:
		return "SignTypedData"
	}
	return "Unknown"
}

// Topic is where a pending operation of this kind is emitted.
func (k OperationKind) Topic() string {
	return operationTopics[k][0]
}

// ResultTopic is where the result of an operation of this kind is emitted.
func (k OperationKind) ResultTopic() string {
	return operationTopics[k][1]
}

// RequestArguments is an EIP-1193 request.
type RequestArguments struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params,omitempty"`
}

// Param decodes the i-th parameter into v.
func (r RequestArguments) Param(i int, v interface{}) error {
	if i >= len(r.Params) {
		return fmt.Errorf("%w: missing parameter %d", ErrInvalidParams, i)
	}
	if err := json.Unmarshal(r.Params[i], v); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidParams, err)
	}
	return nil
}

// NewRequest builds request arguments by encoding the given params.
func NewRequest(method string, params ...interface{}) (RequestArguments, error) {
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		buf, err := json.Marshal(p)
		if err != nil {
			return RequestArguments{}, err
		}
		raw = append(raw, buf)
	}
	return RequestArguments{method, raw}, nil
}

// PendingOperation is an operation awaiting interactive confirmation.
type PendingOperation struct {
	Kind OperationKind `json:"-"`
	// UserOp is set for OperationSendUserOp.
	UserOp *SendUserOpRequest `json:"userOp,omitempty"`
	// Request is set for signing operations.
	Request *RequestArguments `json:"request,omitempty"`
}

// OperationResult carries exactly one of result or error.
type OperationResult struct {
	Result string    `json:"result,omitempty"`
	Error  *RPCError `json:"error,omitempty"`
}

// NewOperationResult ...
func NewOperationResult(result string, err error) OperationResult {
	if err != nil {
		return OperationResult{Error: ToRPCError(err)}
	}
	return OperationResult{Result: result}
}

// Unwrap returns the result or the error.
func (r OperationResult) Unwrap() (string, error) {
	if r.Error != nil {
		return "", r.Error
	}
	return r.Result, nil
}

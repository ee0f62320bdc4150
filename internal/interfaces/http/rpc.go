package httpinterface

import (
	"encoding/json"
	"net/http"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	jsonRPCVersion = "2.0"

	codeParseError     = -32700
	codeInvalidRequest = -32600
)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *domain.RPCError `json:"error,omitempty"`
}

// rpc serves EIP-1193 requests as JSON-RPC 2.0 calls. Errors are always
// returned with a 200 status, as JSON-RPC errors.
func (h *handler) rpc(c *gin.Context) {
	var req rpcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, rpcResponse{
			JSONRPC: jsonRPCVersion,
			ID:      json.RawMessage("null"),
			Error:   domain.NewRPCError(codeParseError, "parse error: %s", err),
		})
		return
	}
	id := req.ID
	if len(id) <= 0 {
		id = json.RawMessage("null")
	}
	if req.Method == "" {
		c.JSON(http.StatusOK, rpcResponse{
			JSONRPC: jsonRPCVersion,
			ID:      id,
			Error:   domain.NewRPCError(codeInvalidRequest, "missing method"),
		})
		return
	}

	result, err := h.evmProvider.Request(c.Request.Context(), domain.RequestArguments{
		Method: req.Method,
		Params: req.Params,
	})
	if err != nil {
		log.WithError(err).Debugf("rpc request %s failed", req.Method)
		c.JSON(http.StatusOK, rpcResponse{
			JSONRPC: jsonRPCVersion, ID: id, Error: domain.ToRPCError(err),
		})
		return
	}
	if len(result) <= 0 {
		result = json.RawMessage("null")
	}
	c.JSON(http.StatusOK, rpcResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

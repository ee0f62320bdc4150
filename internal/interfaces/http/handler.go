package httpinterface

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/btcconnect/connectkit/internal/core/application"
	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/gin-gonic/gin"
)

type handler struct {
	connectSvc  application.ConnectService
	evmProvider application.EVMProvider
	signSvc     application.SignService
}

type connectRequest struct {
	ConnectorID string `json:"connectorId" binding:"required"`
}

type signMessageRequest struct {
	Message string               `json:"message" binding:"required"`
	Type    domain.SignatureType `json:"type"`
}

type networkRequest struct {
	Network domain.Network `json:"network" binding:"required"`
}

type sendBitcoinRequest struct {
	ToAddress string              `json:"toAddress" binding:"required"`
	Satoshis  uint64              `json:"satoshis" binding:"required"`
	Options   *domain.SendOptions `json:"options"`
}

type sendInscriptionRequest struct {
	Address       string              `json:"address" binding:"required"`
	InscriptionID string              `json:"inscriptionId" binding:"required"`
	Options       *domain.SendOptions `json:"options"`
}

type feeQuotesRequest struct {
	Txs []domain.Transaction `json:"tx" binding:"required"`
}

type switchChainRequest struct {
	ChainID uint64 `json:"chainId" binding:"required"`
}

type selectFeeQuoteRequest struct {
	Index *int `json:"index" binding:"required"`
}

type notRemindRequest struct {
	NotRemind bool `json:"notRemind"`
}

func (h *handler) listConnectors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"connectors": h.connectSvc.Connectors()})
}

func (h *handler) connect(c *gin.Context) {
	var req connectRequest
	if !bindJSON(c, &req) {
		return
	}
	accounts, err := h.connectSvc.Connect(c.Request.Context(), req.ConnectorID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (h *handler) disconnect(c *gin.Context) {
	if err := h.connectSvc.Disconnect(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) getAccounts(c *gin.Context) {
	var connectorID string
	if connector := h.connectSvc.ActiveConnector(); connector != nil {
		connectorID = connector.Metadata().ID
	}
	c.JSON(http.StatusOK, gin.H{
		"connectorId": connectorID,
		"accounts":    h.connectSvc.Accounts(),
		"evmAccount":  h.connectSvc.EVMAccount(),
	})
}

func (h *handler) listAccountContracts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"accountContracts": h.connectSvc.AccountContracts(),
		"selected":         h.connectSvc.AccountContract(),
	})
}

func (h *handler) selectAccountContract(c *gin.Context) {
	var req domain.AccountContract
	if !bindJSON(c, &req) {
		return
	}
	if err := h.connectSvc.SelectAccountContract(c.Request.Context(), req); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"selected": h.connectSvc.AccountContract()})
}

func (h *handler) getPublicKey(c *gin.Context) {
	pubKey, err := h.connectSvc.GetPublicKey(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": pubKey})
}

func (h *handler) signMessage(c *gin.Context) {
	var req signMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	sig, err := h.connectSvc.SignMessage(c.Request.Context(), req.Message, req.Type)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signature": sig})
}

func (h *handler) getNetwork(c *gin.Context) {
	network, err := h.connectSvc.GetNetwork(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"network": network})
}

func (h *handler) switchNetwork(c *gin.Context) {
	var req networkRequest
	if !bindJSON(c, &req) {
		return
	}
	network, err := domain.ParseNetwork(string(req.Network))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.connectSvc.SwitchNetwork(c.Request.Context(), network); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"network": network})
}

func (h *handler) sendBitcoin(c *gin.Context) {
	var req sendBitcoinRequest
	if !bindJSON(c, &req) {
		return
	}
	txid, err := h.connectSvc.SendBitcoin(
		c.Request.Context(), req.ToAddress, req.Satoshis, req.Options,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"txid": txid})
}

func (h *handler) sendInscription(c *gin.Context) {
	var req sendInscriptionRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.connectSvc.SendInscription(
		c.Request.Context(), req.Address, req.InscriptionID, req.Options,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) getSmartAccountInfo(c *gin.Context) {
	info, err := h.evmProvider.GetSmartAccountInfo(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *handler) getFeeQuotes(c *gin.Context) {
	var req feeQuotesRequest
	if !bindJSON(c, &req) {
		return
	}
	quotes, err := h.evmProvider.GetFeeQuotes(c.Request.Context(), req.Txs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quotes)
}

func (h *handler) buildUserOp(c *gin.Context) {
	var req domain.UserOpParams
	if !bindJSON(c, &req) {
		return
	}
	bundle, err := h.evmProvider.BuildUserOp(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bundle)
}

// sendUserOp waits for the confirmation of the operation unless the
// forceHideConfirm query param is set.
func (h *handler) sendUserOp(c *gin.Context) {
	var req domain.SendUserOpRequest
	if !bindJSON(c, &req) {
		return
	}
	forceHideConfirm, _ := strconv.ParseBool(c.Query("forceHideConfirm"))

	txHash, err := h.evmProvider.SendUserOp(c.Request.Context(), req, forceHideConfirm)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"txHash": txHash})
}

func (h *handler) switchChain(c *gin.Context) {
	var req switchChainRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.evmProvider.SwitchChain(c.Request.Context(), req.ChainID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chainId": req.ChainID})
}

func (h *handler) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.signSvc.Sessions()})
}

func (h *handler) getSession(c *gin.Context) {
	session, err := h.signSvc.GetSession(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *handler) selectFeeQuote(c *gin.Context) {
	var req selectFeeQuoteRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.signSvc.SelectFeeQuote(
		c.Request.Context(), c.Param("id"), *req.Index,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *handler) setNotRemind(c *gin.Context) {
	var req notRemindRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.signSvc.SetNotRemind(
		c.Request.Context(), c.Param("id"), req.NotRemind,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *handler) confirm(c *gin.Context) {
	session, err := h.signSvc.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *handler) reject(c *gin.Context) {
	if err := h.signSvc.Reject(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": domain.NewRPCError(domain.CodeInvalidParams, "%s", err),
		})
		return false
	}
	return true
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": domain.ToRPCError(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrConnectorNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotInstalled),
		errors.Is(err, domain.ErrNotConnected):
		return http.StatusPreconditionFailed
	case errors.Is(err, domain.ErrOperationInProgress),
		errors.Is(err, domain.ErrSessionNotReady):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrUserRejected):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidConfiguration),
		errors.Is(err, domain.ErrInvalidParams),
		errors.Is(err, domain.ErrUnsupportedMethod),
		errors.Is(err, domain.ErrUnsupportedChain):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

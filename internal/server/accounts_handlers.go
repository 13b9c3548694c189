package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/jobtracker/internal/accounts"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const tokenTypeBearer = "Bearer"

type signUpRequestPayload struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	PwConfirmation string `json:"pwConfirmation"`
}

type signInRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponsePayload struct {
	Account   accounts.Account `json:"account"`
	Token     string           `json:"token"`
	ExpiresIn int64            `json:"expiresIn"`
	TokenType string           `json:"tokenType"`
}

type nameRequestPayload struct {
	Name string `json:"name"`
}

type emailRequestPayload struct {
	Email string `json:"email"`
}

type passwordRequestPayload struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	PwConfirmation  string `json:"pwConfirmation"`
}

type suggestedEmailsRequestPayload struct {
	SuggestedEmails []string `json:"suggestedEmails"`
}

type passwordConfirmationPayload struct {
	Password string `json:"password"`
}

func (h *httpHandler) handleSignUp(c *gin.Context) {
	var request signUpRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c, "malformed request body")
		return
	}
	account, err := h.accounts.SignUp(c.Request.Context(), accounts.SignUpInput{
		Name:                 request.Name,
		Email:                request.Email,
		Password:             request.Password,
		PasswordConfirmation: request.PwConfirmation,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondSession(c, http.StatusCreated, account)
}

func (h *httpHandler) handleSignIn(c *gin.Context) {
	var request signInRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c, "malformed request body")
		return
	}
	account, err := h.accounts.SignIn(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondSession(c, http.StatusOK, account)
}

func (h *httpHandler) handleRenewToken(c *gin.Context) {
	account, err := h.accounts.Get(c.Request.Context(), accountID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondSession(c, http.StatusOK, account)
}

func (h *httpHandler) handleGetAccount(c *gin.Context) {
	account, err := h.accounts.Get(c.Request.Context(), accountID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *httpHandler) handleUpdateName(c *gin.Context) {
	var request nameRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c, "malformed request body")
		return
	}
	account, err := h.accounts.UpdateName(c.Request.Context(), accountID(c), request.Name)
	h.respondAccount(c, account, err)
}

func (h *httpHandler) handleUpdateEmail(c *gin.Context) {
	var request emailRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c, "malformed request body")
		return
	}
	account, err := h.accounts.UpdateEmail(c.Request.Context(), accountID(c), request.Email)
	h.respondAccount(c, account, err)
}

func (h *httpHandler) handleUpdatePassword(c *gin.Context) {
	var request passwordRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c, "malformed request body")
		return
	}
	account, err := h.accounts.UpdatePassword(c.Request.Context(), accountID(c), accounts.PasswordChangeInput{
		CurrentPassword:      request.CurrentPassword,
		NewPassword:          request.NewPassword,
		PasswordConfirmation: request.PwConfirmation,
	})
	h.respondAccount(c, account, err)
}

func (h *httpHandler) handleUpdateSuggestedEmails(c *gin.Context) {
	var request suggestedEmailsRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c, "malformed request body")
		return
	}
	account, err := h.accounts.UpdateSuggestedEmails(c.Request.Context(), accountID(c), request.SuggestedEmails)
	h.respondAccount(c, account, err)
}

func (h *httpHandler) handleDeleteAccount(c *gin.Context) {
	var request passwordConfirmationPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c, "malformed request body")
		return
	}
	account, err := h.accounts.Delete(c.Request.Context(), accountID(c), request.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.logger.Info("account deleted", zap.String("account_id", account.ID))
	c.JSON(http.StatusOK, account)
}

func (h *httpHandler) respondAccount(c *gin.Context, account accounts.Account, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *httpHandler) respondSession(c *gin.Context, status int, account accounts.Account) {
	token, expiresIn, err := h.tokens.IssueToken(c.Request.Context(), account.ID)
	if err != nil {
		h.logger.Error("failed to issue token", zap.String("account_id", account.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "token_issue_failed", Message: "could not issue a session token"})
		return
	}
	c.JSON(status, sessionResponsePayload{
		Account:   account,
		Token:     token,
		ExpiresIn: expiresIn,
		TokenType: tokenTypeBearer,
	})
}

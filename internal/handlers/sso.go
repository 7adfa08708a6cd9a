package handlers

import (
	stderrors "errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/nwaqas/finfortress/internal/auth"
	"github.com/nwaqas/finfortress/internal/auth/providers"
	"github.com/nwaqas/finfortress/pkg/crypto"
	"github.com/nwaqas/finfortress/pkg/errors"
	"github.com/nwaqas/finfortress/pkg/response"
)

// SSOHandler drives the federated sign-in popup: a redirect out to the
// external issuer and a callback that lands the tokens back on the opener.
type SSOHandler struct {
	provider *providers.OIDCProvider
	manager  *iauth.SSOManager
	codec    *iauth.StateCodec
}

// NewSSOHandler wires the handler; all dependencies are required.
func NewSSOHandler(provider *providers.OIDCProvider, manager *iauth.SSOManager, codec *iauth.StateCodec) (*SSOHandler, error) {
	if provider == nil {
		return nil, stderrors.New("sso handler: provider is required")
	}
	if manager == nil {
		return nil, stderrors.New("sso handler: manager is required")
	}
	if codec == nil {
		return nil, stderrors.New("sso handler: state codec is required")
	}
	return &SSOHandler{provider: provider, manager: manager, codec: codec}, nil
}

// Begin redirects the popup to the issuer's authorization endpoint. The
// device id identifies the browser tab so the unlock flow can resume there.
func (h *SSOHandler) Begin(c *gin.Context) {
	deviceID := strings.TrimSpace(c.Query("device_id"))
	if deviceID == "" {
		response.Error(c, errors.NewBadRequest("device_id is required"))
		return
	}

	pkce, err := iauth.GeneratePKCE()
	if err != nil {
		response.Error(c, err)
		return
	}

	nonce, err := crypto.GenerateToken(32)
	if err != nil {
		response.Error(c, err)
		return
	}

	state, err := h.codec.Encode(iauth.StatePayload{
		DeviceID:  deviceID,
		ReturnURL: sanitizeRedirect(c.Query("redirect"), "/"),
		Nonce:     nonce,
		PKCE:      pkce.Verifier,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	authURL, err := h.provider.AuthURL(state, nonce, pkce.Challenge)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

// Callback completes the code exchange and redirects back to the application
// with a fresh token pair in the fragmentless query, popup-style.
func (h *SSOHandler) Callback(c *gin.Context) {
	stateToken := c.Query("state")
	payload, err := h.codec.Decode(stateToken)
	if err != nil {
		redirectWithError(c, "/login", "sso_state")
		return
	}

	identity, err := h.provider.Exchange(c.Request.Context(), c.Query("code"), payload.PKCE, payload.Nonce)
	if err != nil {
		redirectWithError(c, payload.ReturnURL, "sso_exchange")
		return
	}

	tokens, user, err := h.manager.Resolve(c.Request.Context(), *identity, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		DeviceID:  payload.DeviceID,
	})
	if err != nil {
		redirectWithError(c, payload.ReturnURL, "sso_denied")
		return
	}

	target := appendTokenQuery(payload.ReturnURL, tokens, user.ID)
	c.Redirect(http.StatusSeeOther, target)
}

func sanitizeRedirect(input, fallback string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return fallback
	}
	if strings.ContainsAny(trimmed, "\r\n") {
		return fallback
	}
	// Relative paths only, to keep the callback from becoming an open redirect.
	if strings.HasPrefix(trimmed, "/") && !strings.HasPrefix(trimmed, "//") {
		return trimmed
	}
	return fallback
}

func appendTokenQuery(redirect string, tokens iauth.TokenPair, userID string) string {
	parsed, err := url.Parse(redirect)
	if err != nil {
		parsed = &url.URL{Path: "/"}
	}

	q := parsed.Query()
	q.Set("access_token", tokens.AccessToken)
	q.Set("refresh_token", tokens.RefreshToken)
	q.Set("user_id", userID)
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

func redirectWithError(c *gin.Context, target, code string) {
	parsed, err := url.Parse(target)
	if err != nil || target == "" {
		parsed = &url.URL{Path: "/login"}
	}

	q := parsed.Query()
	q.Set("error", code)
	parsed.RawQuery = q.Encode()
	c.Redirect(http.StatusSeeOther, parsed.String())
}

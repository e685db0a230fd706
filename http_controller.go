package oauth

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Controller exposes the OAuth2 protocol surface over fiber. The token and
// check_token endpoints require client authentication; token_key is open on
// purpose so downstream services can verify tokens without a privileged
// credential.
type Controller struct {
	server *Server
	logger Logger
}

func NewController(server *Server) *Controller {
	return &Controller{server: server, logger: defLogger{}}
}

func (c *Controller) WithLogger(logger Logger) *Controller {
	c.logger = logger
	return c
}

// RegisterRoutes mounts the protocol endpoints on the app.
func (c *Controller) RegisterRoutes(app *fiber.App) {
	app.Post("/oauth/token", c.Token)
	app.Get("/oauth/token_key", c.TokenKey)
	app.Post("/oauth/check_token", c.CheckToken)
}

// Token handles POST /oauth/token.
func (c *Controller) Token(ctx *fiber.Ctx) error {
	clientID, clientSecret := clientCredentials(ctx)

	req := GrantRequest{
		GrantType:    ctx.FormValue("grant_type"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Username:     ctx.FormValue("username"),
		Password:     ctx.FormValue("password"),
		RefreshToken: ctx.FormValue("refresh_token"),
		Scope:        strings.Fields(ctx.FormValue("scope")),
	}

	resp, err := c.server.Token(ctx.UserContext(), req)
	if err != nil {
		return c.grantError(ctx, err)
	}

	return ctx.JSON(resp)
}

// TokenKey handles GET /oauth/token_key. Unrestricted read access.
func (c *Controller) TokenKey(ctx *fiber.Ctx) error {
	return ctx.JSON(c.server.TokenKey())
}

// CheckToken handles POST /oauth/check_token. Requires an authenticated
// client, unlike the key endpoint.
func (c *Controller) CheckToken(ctx *fiber.Ctx) error {
	clientID, clientSecret := clientCredentials(ctx)
	if err := c.server.Client().Authenticate(clientID, clientSecret); err != nil {
		ctx.Set(fiber.HeaderWWWAuthenticate, `Basic realm="oauth"`)
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Code:        "unauthorized",
			Description: "client authentication required",
		})
	}

	claims, err := c.server.CheckToken(ctx.FormValue("token"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Code:        "invalid_token",
			Description: "token is invalid or expired",
		})
	}

	return ctx.JSON(claims)
}

func (c *Controller) grantError(ctx *fiber.Ctx, err error) error {
	code := ErrorCode(err)

	switch code {
	case "invalid_client":
		ctx.Set(fiber.HeaderWWWAuthenticate, `Basic realm="oauth"`)
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Code:        code,
			Description: "client authentication failed",
		})
	case "invalid_grant":
		return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Code:        code,
			Description: "bad credentials",
		})
	default:
		c.logger.Error("token endpoint internal error: %v", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Code: code,
		})
	}
}

// clientCredentials reads the client id and secret from HTTP Basic auth,
// falling back to the form fields.
func clientCredentials(ctx *fiber.Ctx) (string, string) {
	header := ctx.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Basic ") {
		if id, secret, err := decodeBasicAuth(strings.TrimPrefix(header, "Basic ")); err == nil {
			return id, secret
		}
	}

	return ctx.FormValue("client_id"), ctx.FormValue("client_secret")
}

func decodeBasicAuth(encoded string) (string, string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", err
	}

	id, secret, found := strings.Cut(string(raw), ":")
	if !found {
		return "", "", errors.New("malformed basic auth payload")
	}

	return id, secret, nil
}

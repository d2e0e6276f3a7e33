package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"invoicesys/internal/domain"
	"invoicesys/internal/service"
	"invoicesys/internal/transport/http/ez"
	mdw "invoicesys/internal/transport/http/middleware"
)

type AuthHandler struct {
	auth *service.AuthService
	log  *zap.Logger
}

func NewAuthHandler(auth *service.AuthService, l *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, log: l}
}

func (h *AuthHandler) Priority() int { return 10 }

type registerIn struct {
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Password   string      `json:"password"`
	Department string      `json:"department"`
	Role       domain.Role `json:"role"`
}

type loginIn struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type messageOut struct {
	Message string `json:"message"`
}

type meOut struct {
	User *domain.Identity `json:"user"`
}

func (h *AuthHandler) MountAPI(pub, authed *gin.RouterGroup) {
	public := ez.New(pub, h.log)
	ez.RegisterAction(public, ez.Action[registerIn, *service.AuthResult]{
		Method:         http.MethodPost,
		Path:           "/auth/register",
		Binder:         ez.BindJSON,
		Status:         http.StatusCreated,
		ConflictStatus: http.StatusBadRequest,
		Handler: func(c *gin.Context, in *registerIn) (*service.AuthResult, error) {
			return h.auth.Register(c.Request.Context(), domain.NewUser{
				Name: in.Name, Email: in.Email, Password: in.Password,
				Department: in.Department, Role: in.Role,
			})
		},
	})
	ez.RegisterAction(public, ez.Action[loginIn, *service.AuthResult]{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *loginIn) (*service.AuthResult, error) {
			return h.auth.Login(c.Request.Context(), in.Email, in.Password)
		},
	})

	private := ez.New(authed, h.log)
	ez.RegisterAction(private, ez.Action[struct{}, messageOut]{
		Method: http.MethodPost,
		Path:   "/auth/logout",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (messageOut, error) {
			if err := h.auth.Logout(c.Request.Context(), mdw.TokenFrom(c)); err != nil {
				return messageOut{}, err
			}
			return messageOut{Message: "Logged out successfully"}, nil
		},
	})
	ez.RegisterAction(private, ez.Action[struct{}, meOut]{
		Method: http.MethodGet,
		Path:   "/auth/me",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (meOut, error) {
			id, _ := mdw.IdentityFrom(c)
			return meOut{User: id}, nil
		},
	})
}

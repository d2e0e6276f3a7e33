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

type UserHandler struct {
	users *service.UserService
	log   *zap.Logger
}

func NewUserHandler(users *service.UserService, l *zap.Logger) *UserHandler {
	return &UserHandler{users: users, log: l}
}

type changePasswordIn struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type userOut struct {
	User *domain.User `json:"user"`
}

var errNotSelf = &domain.Error{Kind: domain.ErrForbidden, Msg: "Can only change your own password"}

var errRoleChange = &domain.Error{Kind: domain.ErrForbidden, Msg: "Only admins can change role or status"}

func (h *UserHandler) MountAPI(_, authed *gin.RouterGroup) {
	e := ez.New(authed, h.log)

	ez.RegisterAction(e, ez.Action[struct{}, []domain.User]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.User, error) {
			return h.users.List(c.Request.Context())
		},
	})
	ez.RegisterAction(e, ez.Action[struct{}, userOut]{
		Method: http.MethodGet,
		Path:   "/users/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (userOut, error) {
			u, err := h.users.FindByID(c.Request.Context(), c.Param("id"))
			return userOut{User: u}, err
		},
	})
	ez.RegisterAction(e, ez.Action[domain.UserPatch, userOut]{
		Method: http.MethodPut,
		Path:   "/users/:id",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *domain.UserPatch) (userOut, error) {
			caller, _ := mdw.IdentityFrom(c)
			if (in.Role != nil || in.Status != nil) && caller.Role != domain.RoleAdmin {
				return userOut{}, errRoleChange
			}
			u, err := h.users.Update(c.Request.Context(), c.Param("id"), *in)
			return userOut{User: u}, err
		},
	})
	ez.RegisterAction(e, ez.Action[struct{}, messageOut]{
		Method: http.MethodDelete,
		Path:   "/users/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (messageOut, error) {
			caller, _ := mdw.IdentityFrom(c)
			if err := h.users.Delete(c.Request.Context(), caller.ID, c.Param("id")); err != nil {
				return messageOut{}, err
			}
			return messageOut{Message: "User deleted successfully"}, nil
		},
	})
	ez.RegisterAction(e, ez.Action[changePasswordIn, messageOut]{
		Method: http.MethodPost,
		Path:   "/users/:id/change-password",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *changePasswordIn) (messageOut, error) {
			caller, _ := mdw.IdentityFrom(c)
			if caller.ID != c.Param("id") {
				return messageOut{}, errNotSelf
			}
			if in.CurrentPassword == "" || in.NewPassword == "" {
				return messageOut{}, domain.Validationf("Please fill in all fields")
			}
			if err := h.users.ChangePassword(c.Request.Context(), caller.ID, in.CurrentPassword, in.NewPassword); err != nil {
				return messageOut{}, err
			}
			return messageOut{Message: "Password changed successfully"}, nil
		},
	})
}

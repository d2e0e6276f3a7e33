package ez

import (
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"invoicesys/internal/domain"
	mdw "invoicesys/internal/transport/http/middleware"
	resp "invoicesys/internal/transport/http/response"
)

// EZ 对 gin.RouterGroup 的轻封装：一个 Action 一行注册
type EZ struct {
	g   *gin.RouterGroup
	log *zap.Logger
}

func New(g *gin.RouterGroup, l *zap.Logger) EZ { return EZ{g: g, log: l} }

type Binder string

const (
	BindJSON  Binder = "json"
	BindQuery Binder = "query"
	BindNone  Binder = "none" // 自己从 c.Param 取
)

// Action I 入参，O 出参
type Action[I any, O any] struct {
	Method string
	Path   string
	Binder Binder
	Auth   bool          // 要求已登录（分组已挂 SessionAuth 时只是双保险）
	Roles  []domain.Role // 限定角色，可选
	// Status 成功时的 HTTP 状态码，默认 200
	Status int
	// ConflictStatus 冲突类错误的状态码，默认 409
	ConflictStatus int
	Handler        func(c *gin.Context, in *I) (O, error)
}

func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	if a.Status == 0 {
		a.Status = http.StatusOK
	}
	if a.ConflictStatus == 0 {
		a.ConflictStatus = http.StatusConflict
	}
	h := func(c *gin.Context) {
		// 1) 鉴权/角色
		if a.Auth || len(a.Roles) > 0 {
			id, ok := mdw.IdentityFrom(c)
			if !ok {
				c.AbortWithStatusJSON(http.StatusUnauthorized, resp.Error(resp.CodeUnauthorized, "Authentication required"))
				return
			}
			if len(a.Roles) > 0 && !slices.Contains(a.Roles, id.Role) {
				c.AbortWithStatusJSON(http.StatusForbidden, resp.Error(resp.CodeForbidden, "Insufficient permissions"))
				return
			}
		}

		// 2) 绑定入参
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
			if errors.Is(bindErr, io.EOF) {
				bindErr = nil // 空 body 交给业务层校验
			}
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		}
		if bindErr != nil {
			var mbe *http.MaxBytesError
			if errors.As(bindErr, &mbe) {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, resp.Error(resp.CodeTooLarge, "request body too large"))
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, resp.Error(resp.CodeBadRequest, "Invalid request body"))
			return
		}

		// 3) 执行 + 统一错误映射
		out, err := a.Handler(c, &in)
		if err != nil {
			status := StatusOf(err, a.ConflictStatus)
			if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
				e.log.Error("action failed",
					zap.String("rid", c.GetString(mdw.KeyRequestID)),
					zap.String("route", a.Method+" "+c.FullPath()),
					zap.Error(err))
			}
			c.AbortWithStatusJSON(status, resp.Error(status, domain.Message(err)))
			return
		}
		c.JSON(a.Status, resp.OK(out))
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodPatch:
		e.g.PATCH(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default:
		e.g.POST(a.Path, h)
	}
}

// StatusOf 错误分类 → HTTP 状态码；未分类一律 500
func StatusOf(err error, conflictStatus int) int {
	switch domain.Kind(err) {
	case domain.ErrValidation:
		return http.StatusBadRequest
	case domain.ErrUnauthenticated:
		return http.StatusUnauthorized
	case domain.ErrForbidden:
		return http.StatusForbidden
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrConflict:
		return conflictStatus
	case domain.ErrExternal, domain.ErrExternalUnavailable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

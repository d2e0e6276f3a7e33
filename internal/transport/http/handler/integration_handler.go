package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"invoicesys/internal/domain"
	"invoicesys/internal/integration/freshservice"
	"invoicesys/internal/transport/http/ez"
	mdw "invoicesys/internal/transport/http/middleware"
)

type freshserviceAPI interface {
	TestConnection(ctx context.Context) (bool, string)
	PurchaseOrders(ctx context.Context, params url.Values) (*freshservice.ListResult, error)
	Tickets(ctx context.Context, params url.Values) (*freshservice.ListResult, error)
	Assets(ctx context.Context, params url.Values) (*freshservice.ListResult, error)
	Contracts(ctx context.Context, params url.Values) (*freshservice.ListResult, error)
	Vendors(ctx context.Context, params url.Values) (*freshservice.ListResult, error)
}

type poImporter interface {
	Import(ctx context.Context, ids []string) (*freshservice.ImportReport, error)
}

// IntegrationHandler 外部系统故障不让请求失败，统一返回 success=false
type IntegrationHandler struct {
	client   freshserviceAPI
	importer poImporter
	log      *zap.Logger
}

func NewIntegrationHandler(client freshserviceAPI, importer poImporter, l *zap.Logger) *IntegrationHandler {
	return &IntegrationHandler{client: client, importer: importer, log: l}
}

type externalOut struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Error   string            `json:"error,omitempty"`
	Data    []json.RawMessage `json:"data"`
	Meta    json.RawMessage   `json:"meta,omitempty"`
}

type importIn struct {
	IDs []string `json:"ids"`
}

func (h *IntegrationHandler) MountAPI(_, authed *gin.RouterGroup) {
	g := authed.Group("/integrations/freshservice")
	e := ez.New(g, h.log)

	ez.RegisterAction(e, ez.Action[struct{}, externalOut]{
		Method: http.MethodGet,
		Path:   "/test",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (externalOut, error) {
			ok, msg := h.client.TestConnection(c.Request.Context())
			return externalOut{Success: ok, Message: msg, Data: []json.RawMessage{}}, nil
		},
	})

	lists := map[string]func(context.Context, url.Values) (*freshservice.ListResult, error){
		"/purchase-orders": h.client.PurchaseOrders,
		"/tickets":         h.client.Tickets,
		"/assets":          h.client.Assets,
		"/contracts":       h.client.Contracts,
		"/vendors":         h.client.Vendors,
	}
	for path, fetch := range lists {
		ez.RegisterAction(e, ez.Action[struct{}, externalOut]{
			Method: http.MethodGet,
			Path:   path,
			Binder: ez.BindNone,
			Auth:   true,
			Handler: func(c *gin.Context, _ *struct{}) (externalOut, error) {
				res, err := fetch(c.Request.Context(), c.Request.URL.Query())
				if err != nil {
					if domain.Kind(err) == nil {
						return externalOut{}, err
					}
					return externalOut{Error: domain.Message(err), Data: []json.RawMessage{}}, nil
				}
				return externalOut{Success: true, Data: res.Data, Meta: res.Meta}, nil
			},
		})
	}

	admin := ez.New(g.Group("", mdw.RequireRole(domain.RoleAdmin, domain.RoleManager)), h.log)
	ez.RegisterAction(admin, ez.Action[importIn, *freshservice.ImportReport]{
		Method: http.MethodPost,
		Path:   "/import",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *importIn) (*freshservice.ImportReport, error) {
			return h.importer.Import(c.Request.Context(), in.IDs)
		},
	})
}

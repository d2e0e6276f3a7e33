package router

import (
	"sort"

	"github.com/gin-gonic/gin"
)

// APIModule pub 为公开分组，authed 已挂 SessionAuth
type APIModule interface {
	MountAPI(pub, authed *gin.RouterGroup)
}

// 实现该接口可控制挂载顺序（数值越小越先挂），默认 100
type prioritizer interface{ Priority() int }

type Registry struct {
	mods []APIModule
}

func (r *Registry) Register(mods ...APIModule) {
	r.mods = append(r.mods, mods...)
}

func (r *Registry) MountAll(pub, authed *gin.RouterGroup) {
	mods := append([]APIModule(nil), r.mods...)
	sort.SliceStable(mods, func(i, j int) bool {
		return priorityOf(mods[i]) < priorityOf(mods[j])
	})
	for _, m := range mods {
		m.MountAPI(pub, authed)
	}
}

func priorityOf(v any) int {
	if p, ok := v.(prioritizer); ok {
		return p.Priority()
	}
	return 100
}

package server

import (
	"context"
	"sync"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/zishu-lab/jobchat/cities"
)

const citiesUnavailableMessage = "city data is not available; run `jobchat cities generate`"

// cityHandler serves the generated city taxonomy. The file is read on first
// success and kept; failed reads are retried on the next request.
type cityHandler struct {
	path string

	mu       sync.Mutex
	taxonomy *cities.Taxonomy
}

func newCityHandler(path string) *cityHandler {
	return &cityHandler{path: path}
}

func (h *cityHandler) load() (*cities.Taxonomy, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.taxonomy != nil {
		return h.taxonomy, nil
	}
	taxonomy, err := cities.Load(h.path)
	if err != nil {
		return nil, err
	}
	h.taxonomy = taxonomy
	return taxonomy, nil
}

// getTaxonomy handles GET /api/cities.
func (h *cityHandler) getTaxonomy(ctx context.Context, c *app.RequestContext) {
	if h.path == "" {
		errorResponse(c, consts.StatusServiceUnavailable, citiesUnavailableMessage)
		return
	}
	taxonomy, err := h.load()
	if err != nil {
		errorResponse(c, consts.StatusServiceUnavailable, citiesUnavailableMessage)
		return
	}
	c.JSON(consts.StatusOK, taxonomy)
}

func (h *cityHandler) health(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"status": "ok"})
}

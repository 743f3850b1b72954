package proxy

import "github.com/gin-gonic/gin"

// canonicalPaths are the LLM endpoints spec §6 names explicitly; native
// passthrough paths (/v1/messages, /v1beta/models/...) are reached through
// the catch-all below instead, since their shape varies per upstream model
// name.
var canonicalPaths = []string{
	"/v1/chat/completions",
	"/v1/completions",
	"/v1/embeddings",
	"/v1/models",
}

// RegisterRoutes wires the canonical endpoints plus a catch-all so any
// configured match_path prefix reaches the pipeline, spec §6: "the gateway
// serves any path configured as a match_path".
func RegisterRoutes(r *gin.Engine, authMw gin.HandlerFunc, p *Pipeline) {
	group := r.Group("/", authMw)
	for _, path := range canonicalPaths {
		group.POST(path, p.Handle)
		group.GET(path, p.Handle)
	}
	// Native passthrough and any other configured match_path prefix
	// (/v1/messages, /v1beta/models/*, provider-specific routes) falls
	// through here; Route Resolver (C2) is the actual authority on whether
	// the path matches anything. gin.Engine.NoRoute bypasses group
	// middleware, so authMw is chained explicitly.
	r.NoRoute(authMw, p.Handle)
}

package graphql

import (
	"encoding/json"
	"net/http"

	"github.com/graphql-go/graphql"
	graphqlhandler "github.com/graphql-go/handler"
	"go.uber.org/zap"
)

// Handler handles GraphQL requests
type Handler struct {
	schema  *Schema
	handler *graphqlhandler.Handler
	logger  *zap.Logger
}

// NewHandler creates a new GraphQL handler
func NewHandler(deps Deps) (*Handler, error) {
	schema, err := NewSchema(deps)
	if err != nil {
		return nil, err
	}

	h := graphqlhandler.New(&graphqlhandler.Config{
		Schema:     &schema.schema,
		Pretty:     true,
		GraphiQL:   false,
		Playground: true,
	})

	return &Handler{
		schema:  schema,
		handler: h,
		logger:  schema.logger,
	}, nil
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// ExecuteQuery executes a GraphQL query (for testing)
func (h *Handler) ExecuteQuery(query string, variables map[string]interface{}) *graphql.Result {
	params := graphql.Params{
		Schema:         h.schema.schema,
		RequestString:  query,
		VariableValues: variables,
	}
	return graphql.Do(params)
}

// ExecuteQueryJSON executes a GraphQL query and returns JSON (for testing)
func (h *Handler) ExecuteQueryJSON(query string, variables map[string]interface{}) ([]byte, error) {
	result := h.ExecuteQuery(query, variables)
	return json.Marshal(result)
}

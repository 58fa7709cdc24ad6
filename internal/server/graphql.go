package server

import (
	"context"
	"encoding/json"
	"net/http"

	gqlgen "github.com/99designs/gqlgen/graphql"
	"github.com/tournevent/fulfillment/internal/fulfillment"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"go.uber.org/zap"
)

// GraphQL request type
type graphQLRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeGraphQL(w, http.StatusMethodNotAllowed, &gqlgen.Response{
			Errors: gqlerror.List{gqlerror.Errorf("Method not allowed, use POST")},
		})
		return
	}

	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGraphQL(w, http.StatusBadRequest, &gqlgen.Response{
			Errors: gqlerror.List{gqlerror.Errorf("Invalid JSON: %s", err.Error())},
		})
		return
	}

	doc, err := parser.ParseQuery(&ast.Source{Input: req.Query})
	if err != nil {
		writeGraphQL(w, http.StatusBadRequest, &gqlgen.Response{
			Errors: gqlerror.List{gqlerror.Errorf("%s", err.Error())},
		})
		return
	}

	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		if req.OperationName == "" && len(doc.Operations) > 1 {
			writeGraphQL(w, http.StatusBadRequest, &gqlgen.Response{
				Errors: gqlerror.List{gqlerror.Errorf("operationName is required when the document has several operations")},
			})
			return
		}
		writeGraphQL(w, http.StatusBadRequest, &gqlgen.Response{
			Errors: gqlerror.List{gqlerror.Errorf("Unknown operation %q", req.OperationName)},
		})
		return
	}

	writeGraphQL(w, http.StatusOK, s.execute(r.Context(), op, req.Variables))
}

// execute resolves each top-level field of op. Field failures become entries
// in the error list; the other fields still resolve.
func (s *Server) execute(ctx context.Context, op *ast.OperationDefinition, vars map[string]interface{}) *gqlgen.Response {
	resp := &gqlgen.Response{}
	data := make(map[string]interface{}, len(op.SelectionSet))

	for _, sel := range op.SelectionSet {
		field, ok := sel.(*ast.Field)
		if !ok {
			resp.Errors = append(resp.Errors, gqlerror.Errorf("fragments are not supported at the top level"))
			continue
		}
		if field.Name == "__typename" {
			data[field.Alias] = typeName(op.Operation)
			continue
		}

		args := make(map[string]interface{}, len(field.Arguments))
		var argErr error
		for _, arg := range field.Arguments {
			v, err := arg.Value.Value(vars)
			if err != nil {
				argErr = err
				break
			}
			args[arg.Name] = v
		}
		if argErr != nil {
			resp.Errors = append(resp.Errors, fieldError(field.Alias, string(fulfillment.KindValidation), argErr.Error()))
			data[field.Alias] = nil
			continue
		}

		result, err := s.resolver.Execute(ctx, op.Operation, field.Name, args)
		if err != nil {
			resp.Errors = append(resp.Errors, s.toGraphQLError(ctx, field.Alias, err))
		}
		projected, perr := project(result, field.SelectionSet)
		if perr != nil {
			resp.Errors = append(resp.Errors, s.toGraphQLError(ctx, field.Alias, perr))
		}
		data[field.Alias] = projected
	}

	raw, err := json.Marshal(data)
	if err != nil {
		resp.Errors = append(resp.Errors, s.toGraphQLError(ctx, "", err))
		return resp
	}
	resp.Data = raw
	return resp
}

// toGraphQLError exposes typed fulfillment errors with their kind as the code.
// Anything else is logged and reported as INTERNAL without details.
func (s *Server) toGraphQLError(ctx context.Context, path string, err error) *gqlerror.Error {
	kind := fulfillment.KindOf(err)
	if kind == "" {
		s.logger.Ctx(ctx).Error("GraphQL field failed", zap.String("field", path), zap.Error(err))
		return fieldError(path, "INTERNAL", "internal error")
	}
	return fieldError(path, string(kind), err.Error())
}

func fieldError(path, code, message string) *gqlerror.Error {
	e := &gqlerror.Error{
		Message:    message,
		Extensions: map[string]interface{}{"code": code},
	}
	if path != "" {
		e.Path = ast.Path{ast.PathName(path)}
	}
	return e
}

func typeName(op ast.Operation) string {
	if op == ast.Mutation {
		return "Mutation"
	}
	return "Query"
}

// project renders v as JSON values restricted to the selected fields.
func project(v interface{}, sel ast.SelectionSet) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return prune(generic, sel), nil
}

func prune(v interface{}, sel ast.SelectionSet) interface{} {
	if len(sel) == 0 {
		return v
	}
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(sel))
		for _, s := range sel {
			f, ok := s.(*ast.Field)
			if !ok {
				continue
			}
			out[f.Alias] = prune(t[f.Name], f.SelectionSet)
		}
		return out
	case []interface{}:
		for i := range t {
			t[i] = prune(t[i], sel)
		}
		return t
	}
	return v
}

func writeGraphQL(w http.ResponseWriter, status int, resp *gqlgen.Response) {
	if resp.Data == nil {
		resp.Data = json.RawMessage("null")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

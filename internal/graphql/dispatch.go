package graphql

import (
	"context"

	"github.com/tournevent/fulfillment/internal/fulfillment"
	"github.com/vektah/gqlparser/v2/ast"
)

type fieldFunc func(ctx context.Context, r *Resolver, args map[string]interface{}) (interface{}, error)

var mutations = map[string]fieldFunc{
	"createShipment": func(ctx context.Context, r *Resolver, args map[string]interface{}) (interface{}, error) {
		var input fulfillment.CreateShipmentCommand
		if err := decodeInput("input", args["input"], &input); err != nil {
			return nil, err
		}
		return r.Mutation().CreateShipment(ctx, input)
	},
	"cancelShipment": func(ctx context.Context, r *Resolver, args map[string]interface{}) (interface{}, error) {
		var input fulfillment.CancelShipmentCommand
		if err := decodeInput("input", args["input"], &input); err != nil {
			return nil, err
		}
		return r.Mutation().CancelShipment(ctx, input)
	},
	"requeueWebhook": func(ctx context.Context, r *Resolver, args map[string]interface{}) (interface{}, error) {
		id, err := stringArg(args, "id")
		if err != nil {
			return nil, err
		}
		return r.Mutation().RequeueWebhook(ctx, id)
	},
}

var queries = map[string]fieldFunc{
	"activeProviders": func(ctx context.Context, r *Resolver, args map[string]interface{}) (interface{}, error) {
		tenantID, err := stringArg(args, "tenantId")
		if err != nil {
			return nil, err
		}
		return r.Query().ActiveProviders(ctx, tenantID)
	},
	"quoteRates": func(ctx context.Context, r *Resolver, args map[string]interface{}) (interface{}, error) {
		var input fulfillment.QuoteRatesCommand
		if err := decodeInput("input", args["input"], &input); err != nil {
			return nil, err
		}
		return r.Query().QuoteRates(ctx, input)
	},
	"shipment": func(ctx context.Context, r *Resolver, args map[string]interface{}) (interface{}, error) {
		id, err := stringArg(args, "id")
		if err != nil {
			return nil, err
		}
		return r.Query().Shipment(ctx, id)
	},
	"webhookLogs": func(ctx context.Context, r *Resolver, args map[string]interface{}) (interface{}, error) {
		tn, err := stringArg(args, "trackingNumber")
		if err != nil {
			return nil, err
		}
		return r.Query().WebhookLogs(ctx, tn)
	},
	"parkedWebhooks": func(ctx context.Context, r *Resolver, args map[string]interface{}) (interface{}, error) {
		limit, err := intArg(args, "limit")
		if err != nil {
			return nil, err
		}
		return r.Query().ParkedWebhooks(ctx, limit)
	},
}

// Execute resolves one top-level field of an operation.
func (r *Resolver) Execute(ctx context.Context, op ast.Operation, field string, args map[string]interface{}) (interface{}, error) {
	table := queries
	if op == ast.Mutation {
		table = mutations
	}
	fn, ok := table[field]
	if !ok {
		return nil, invalidInput("unknown %s field %q", op, field)
	}
	return fn(ctx, r, args)
}

// Fields lists the fields served for an operation type.
func Fields(op ast.Operation) []string {
	table := queries
	if op == ast.Mutation {
		table = mutations
	}
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	return names
}

func stringArg(args map[string]interface{}, name string) (string, error) {
	v, ok := args[name].(string)
	if !ok || v == "" {
		return "", invalidInput("%s: is required", name)
	}
	return v, nil
}

// intArg reads an optional integer argument; absent means zero.
func intArg(args map[string]interface{}, name string) (int, error) {
	switch v := args[name].(type) {
	case nil:
		return 0, nil
	case int64:
		return int(v), nil
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, invalidInput("%s: must be an integer", name)
	}
}

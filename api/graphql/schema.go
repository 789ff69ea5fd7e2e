// Package graphql exposes the engine's collections and submission workflows
// over a programmatically built GraphQL schema.
package graphql

import (
	"context"
	"fmt"

	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/openpredict/chainsync/chain"
	"github.com/openpredict/chainsync/internal/config"
	"github.com/openpredict/chainsync/store"
)

// Chain is the transaction submission surface mutations consume
type Chain interface {
	Approve(ctx context.Context, tokenAddress, spender, amount, sender string) (*chain.SentTx, error)
	TokenTransfer(ctx context.Context, tokenAddress, to, amount, sender string) (*chain.SentTx, error)
	CreateOrder(ctx context.Context, exchangeAddress string, p chain.CreateOrderParams, sender string) (*chain.SentTx, error)
	CancelOrder(ctx context.Context, exchangeAddress string, orderID uint64, sender string) (*chain.SentTx, error)
	RedeemExchange(ctx context.Context, exchangeAddress, tokenAddress, amount, sender string) (*chain.SentTx, error)
}

// Wallet is the native-coin submission surface mutations consume
type Wallet interface {
	SendToAddress(ctx context.Context, address, amount string) (string, error)
}

// Deps bundles what the resolvers need
type Deps struct {
	Store     *store.Store
	Chain     Chain
	Wallet    Wallet
	Contracts *config.ContractMetadata
	// Sender is the default signing address for mutations that do not
	// name one
	Sender string
	Logger *zap.Logger
}

// Schema holds the GraphQL schema
type Schema struct {
	schema graphql.Schema
	deps   Deps
	logger *zap.Logger
}

// NewSchema builds the schema over the given dependencies
func NewSchema(deps Deps) (*Schema, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Contracts == nil {
		return nil, fmt.Errorf("contract metadata is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	s := &Schema{deps: deps, logger: deps.Logger}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"syncInfo": &graphql.Field{
				Type:    syncInfoType,
				Resolve: s.resolveSyncInfo,
			},
			"latestHeight": &graphql.Field{
				Type:    graphql.Int,
				Resolve: s.resolveLatestHeight,
			},
			"topic": &graphql.Field{
				Type: topicType,
				Args: graphql.FieldConfigArgument{
					"address": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: s.resolveTopic,
			},
			"topics": &graphql.Field{
				Type: graphql.NewList(topicType),
				Args: withPagination(graphql.FieldConfigArgument{
					"status": &graphql.ArgumentConfig{Type: graphql.String},
				}),
				Resolve: s.resolveTopics,
			},
			"oracles": &graphql.Field{
				Type: graphql.NewList(oracleType),
				Args: withPagination(graphql.FieldConfigArgument{
					"status":       &graphql.ArgumentConfig{Type: graphql.String},
					"topicAddress": &graphql.ArgumentConfig{Type: graphql.String},
					"token":        &graphql.ArgumentConfig{Type: graphql.String},
				}),
				Resolve: s.resolveOracles,
			},
			"votes": &graphql.Field{
				Type: graphql.NewList(voteType),
				Args: withPagination(graphql.FieldConfigArgument{
					"oracleAddress": &graphql.ArgumentConfig{Type: graphql.String},
					"voterAddress":  &graphql.ArgumentConfig{Type: graphql.String},
				}),
				Resolve: s.resolveVotes,
			},
			"orders": &graphql.Field{
				Type: graphql.NewList(orderType),
				Args: withPagination(graphql.FieldConfigArgument{
					"status":    &graphql.ArgumentConfig{Type: graphql.String},
					"owner":     &graphql.ArgumentConfig{Type: graphql.String},
					"tokenName": &graphql.ArgumentConfig{Type: graphql.String},
					"orderType": &graphql.ArgumentConfig{Type: graphql.String},
				}),
				Resolve: s.resolveOrders,
			},
			"trades": &graphql.Field{
				Type: graphql.NewList(tradeType),
				Args: withPagination(graphql.FieldConfigArgument{
					"orderId":   &graphql.ArgumentConfig{Type: graphql.Int},
					"tokenName": &graphql.ArgumentConfig{Type: graphql.String},
					"since":     &graphql.ArgumentConfig{Type: graphql.Int},
				}),
				Resolve: s.resolveTrades,
			},
			"transactions": &graphql.Field{
				Type: graphql.NewList(transactionType),
				Args: withPagination(graphql.FieldConfigArgument{
					"type":          &graphql.ArgumentConfig{Type: graphql.String},
					"status":        &graphql.ArgumentConfig{Type: graphql.String},
					"senderAddress": &graphql.ArgumentConfig{Type: graphql.String},
				}),
				Resolve: s.resolveTransactions,
			},
			"fundRedeems": &graphql.Field{
				Type: graphql.NewList(fundRedeemType),
				Args: withPagination(graphql.FieldConfigArgument{
					"type":      &graphql.ArgumentConfig{Type: graphql.String},
					"status":    &graphql.ArgumentConfig{Type: graphql.String},
					"owner":     &graphql.ArgumentConfig{Type: graphql.String},
					"tokenName": &graphql.ArgumentConfig{Type: graphql.String},
				}),
				Resolve: s.resolveFundRedeems,
			},
			"markets": &graphql.Field{
				Type:    graphql.NewList(marketType),
				Resolve: s.resolveMarkets,
			},
			"market": &graphql.Field{
				Type: marketType,
				Args: graphql.FieldConfigArgument{
					"pair": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: s.resolveMarket,
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"createTopic": &graphql.Field{
				Type: transactionType,
				Args: graphql.FieldConfigArgument{
					"name":                   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"options":                &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.String)))},
					"resultSetterAddress":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"bettingStartTime":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"bettingEndTime":         &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"resultSettingStartTime": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"resultSettingEndTime":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"amount":                 &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"senderAddress":          &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: s.mutateCreateTopic,
			},
			"setResult": &graphql.Field{
				Type: transactionType,
				Args: graphql.FieldConfigArgument{
					"oracleAddress": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"resultIdx":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"senderAddress": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: s.mutateSetResult,
			},
			"vote": &graphql.Field{
				Type: transactionType,
				Args: graphql.FieldConfigArgument{
					"oracleAddress": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"optionIdx":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"amount":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"senderAddress": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: s.mutateVote,
			},
			"createOrder": &graphql.Field{
				Type: orderType,
				Args: graphql.FieldConfigArgument{
					"sellToken":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"buyToken":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"priceMul":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"priceDiv":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"amount":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"senderAddress": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: s.mutateCreateOrder,
			},
			"cancelOrder": &graphql.Field{
				Type: orderType,
				Args: graphql.FieldConfigArgument{
					"orderId":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"senderAddress": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: s.mutateCancelOrder,
			},
			"transfer": &graphql.Field{
				Type: transactionType,
				Args: graphql.FieldConfigArgument{
					"token":         &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"to":            &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"amount":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"senderAddress": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: s.mutateTransfer,
			},
			"fundExchange": &graphql.Field{
				Type: fundRedeemType,
				Args: graphql.FieldConfigArgument{
					"token":         &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"amount":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"senderAddress": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: s.mutateFundExchange,
			},
			"redeemExchange": &graphql.Field{
				Type: fundRedeemType,
				Args: graphql.FieldConfigArgument{
					"token":         &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"amount":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"senderAddress": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: s.mutateRedeemExchange,
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build schema: %w", err)
	}
	s.schema = schema
	return s, nil
}

// withPagination appends the shared limit/offset arguments
func withPagination(args graphql.FieldConfigArgument) graphql.FieldConfigArgument {
	args["limit"] = &graphql.ArgumentConfig{Type: graphql.Int}
	args["offset"] = &graphql.ArgumentConfig{Type: graphql.Int}
	return args
}

package graphql

import (
	"errors"

	"github.com/graphql-go/graphql"

	"github.com/openpredict/chainsync/internal/constants"
	"github.com/openpredict/chainsync/store"
	"github.com/openpredict/chainsync/types"
)

func stringArg(p graphql.ResolveParams, name string) string {
	if v, ok := p.Args[name].(string); ok {
		return v
	}
	return ""
}

func intArg(p graphql.ResolveParams, name string) int {
	if v, ok := p.Args[name].(int); ok {
		return v
	}
	return 0
}

// pagination clamps the requested window to the configured bounds
func pagination(p graphql.ResolveParams) (limit, offset int) {
	limit = intArg(p, "limit")
	if limit <= 0 {
		limit = constants.DefaultPaginationLimit
	}
	if limit > constants.MaxPaginationLimit {
		limit = constants.MaxPaginationLimit
	}
	offset = intArg(p, "offset")
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func phases(status string) []types.Phase {
	if status == "" {
		return nil
	}
	return []types.Phase{types.Phase(status)}
}

func (s *Schema) resolveSyncInfo(p graphql.ResolveParams) (interface{}, error) {
	info, err := s.deps.Store.GetSyncInfo()
	if errors.Is(err, store.ErrNotFound) {
		return types.SyncInfo{}, nil
	}
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (s *Schema) resolveLatestHeight(p graphql.ResolveParams) (interface{}, error) {
	height, err := s.deps.Store.LatestHeight()
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return nil, err
	}
	return int(height), nil
}

func (s *Schema) resolveTopic(p graphql.ResolveParams) (interface{}, error) {
	topic, err := s.deps.Store.GetTopicByAddress(stringArg(p, "address"))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return topic, nil
}

func (s *Schema) resolveTopics(p graphql.ResolveParams) (interface{}, error) {
	limit, offset := pagination(p)
	return s.deps.Store.ListTopics(store.TopicFilter{
		Statuses: phases(stringArg(p, "status")),
		Limit:    limit,
		Offset:   offset,
	})
}

func (s *Schema) resolveOracles(p graphql.ResolveParams) (interface{}, error) {
	limit, offset := pagination(p)
	return s.deps.Store.ListOracles(store.OracleFilter{
		Statuses:     phases(stringArg(p, "status")),
		TopicAddress: stringArg(p, "topicAddress"),
		Token:        stringArg(p, "token"),
		Limit:        limit,
		Offset:       offset,
	})
}

func (s *Schema) resolveVotes(p graphql.ResolveParams) (interface{}, error) {
	limit, offset := pagination(p)
	return s.deps.Store.ListVotes(store.VoteFilter{
		OracleAddress: stringArg(p, "oracleAddress"),
		Voter:         stringArg(p, "voterAddress"),
		Limit:         limit,
		Offset:        offset,
	})
}

func (s *Schema) resolveOrders(p graphql.ResolveParams) (interface{}, error) {
	limit, offset := pagination(p)
	filter := store.OrderFilter{
		Owner:     stringArg(p, "owner"),
		TokenName: stringArg(p, "tokenName"),
		Side:      types.OrderSide(stringArg(p, "orderType")),
		Limit:     limit,
		Offset:    offset,
	}
	if status := stringArg(p, "status"); status != "" {
		filter.Statuses = []types.OrderStatus{types.OrderStatus(status)}
	}
	return s.deps.Store.ListOrders(filter)
}

func (s *Schema) resolveTrades(p graphql.ResolveParams) (interface{}, error) {
	limit, offset := pagination(p)
	return s.deps.Store.ListTrades(store.TradeFilter{
		OrderID:   uint64(intArg(p, "orderId")),
		TokenName: stringArg(p, "tokenName"),
		Since:     int64(intArg(p, "since")),
		Limit:     limit,
		Offset:    offset,
	})
}

func (s *Schema) resolveTransactions(p graphql.ResolveParams) (interface{}, error) {
	limit, offset := pagination(p)
	filter := store.TransactionFilter{
		Sender: stringArg(p, "senderAddress"),
		Limit:  limit,
		Offset: offset,
	}
	if txType := stringArg(p, "type"); txType != "" {
		filter.Types = []types.TxType{types.TxType(txType)}
	}
	if status := stringArg(p, "status"); status != "" {
		filter.Statuses = []types.TxStatus{types.TxStatus(status)}
	}
	return s.deps.Store.ListTransactions(filter)
}

func (s *Schema) resolveFundRedeems(p graphql.ResolveParams) (interface{}, error) {
	limit, offset := pagination(p)
	filter := store.FundRedeemFilter{
		Type:      types.FundRedeemType(stringArg(p, "type")),
		Owner:     stringArg(p, "owner"),
		TokenName: stringArg(p, "tokenName"),
		Limit:     limit,
		Offset:    offset,
	}
	if status := stringArg(p, "status"); status != "" {
		filter.Statuses = []types.TxStatus{types.TxStatus(status)}
	}
	return s.deps.Store.ListFundRedeems(filter)
}

func (s *Schema) resolveMarkets(p graphql.ResolveParams) (interface{}, error) {
	return s.deps.Store.ListMarkets()
}

func (s *Schema) resolveMarket(p graphql.ResolveParams) (interface{}, error) {
	market, err := s.deps.Store.GetMarket(stringArg(p, "pair"))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return market, nil
}

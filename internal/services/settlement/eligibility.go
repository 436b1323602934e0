package settlement

import (
	"github.com/stenbridge/settlement-service/internal/domain"
)

// Policy selects which kinds of order lines are settled immediately at
// order-creation time instead of waiting for fulfillment.
type Policy struct {
	SettlePhysical  bool
	SettleVirtual   bool
	SettleRecurring bool
	SettleFee       bool
}

// InstantSettleItems returns the order lines eligible for instant settle
// under the given policy. The result is a pure function of each line's kind
// and flags:
//
//   - physical lines (not virtual, not downloadable, not recurring) and
//     shipping lines settle under SettlePhysical
//   - virtual or downloadable lines settle under SettleVirtual
//   - platform-managed recurring lines settle under SettleRecurring
//   - fee lines settle under SettleFee
//
// Lines whose recurring lifecycle the gateway owns are never instant-settled,
// and lines already settled are excluded.
func InstantSettleItems(order *domain.Order, policy Policy) []*domain.LineItem {
	var eligible []*domain.LineItem
	for _, li := range order.Lines {
		if li.Settled {
			continue
		}
		if itemEligible(li, policy) {
			eligible = append(eligible, li)
		}
	}
	return eligible
}

func itemEligible(li *domain.LineItem, policy Policy) bool {
	switch li.Kind {
	case domain.ItemKindShipping:
		// shipping is settled together with the goods it ships
		return policy.SettlePhysical
	case domain.ItemKindFee:
		return policy.SettleFee
	case domain.ItemKindVirtual:
		return policy.SettleVirtual
	case domain.ItemKindRecurring:
		if li.GatewayManaged {
			return false
		}
		return policy.SettleRecurring
	default:
		if li.Virtual || li.Downloadable {
			return policy.SettleVirtual
		}
		return policy.SettlePhysical
	}
}

package orders

import (
	"sort"
	"strconv"
	"strings"

	"github.com/norberto-e-888/pos-app/pkg/db/models"
)

// FingerprintItem is the part of an order line the fingerprint depends on.
type FingerprintItem struct {
	ProductID string
	Quantity  int
}

// Fingerprint identifies an order by customer, destination and item set:
//
//	customerId.country.state.city.street.zip.itemsHash
//
// itemsHash joins productId.quantity pairs with "." after sorting by product id, so
// item order never changes the result.
func Fingerprint(customerID string, addr models.Address, items []FingerprintItem) string {
	sorted := make([]FingerprintItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	pairs := make([]string, 0, len(sorted))
	for _, item := range sorted {
		pairs = append(pairs, item.ProductID+"."+strconv.Itoa(item.Quantity))
	}

	return strings.Join([]string{
		customerID,
		addr.Country,
		addr.State,
		addr.City,
		addr.Street,
		addr.Zip,
		strings.Join(pairs, "."),
	}, ".")
}

// OrderFingerprint applies Fingerprint to a loaded order.
func OrderFingerprint(order *models.Order) string {
	items := make([]FingerprintItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, FingerprintItem{ProductID: item.ProductID.String(), Quantity: item.Quantity})
	}
	return Fingerprint(order.CustomerID.String(), order.ShippingAddress, items)
}

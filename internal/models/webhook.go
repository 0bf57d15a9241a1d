// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"slices"
	"strings"
)

// WebhookInput is what the dashboard supplies when creating a hook.
type WebhookInput struct {
	Scope       string `json:"scope"`
	Destination string `json:"destination"`
	IsActive    bool   `json:"is_active"`
}

// webhookScopes lists the subscribable scopes grouped by resource.
var webhookScopes = map[string][]string{
	"cart": {
		"store/cart/*",
		"store/cart/created",
		"store/cart/updated",
		"store/cart/deleted",
		"store/cart/couponApplied",
		"store/cart/abandoned",
		"store/cart/converted",
		"store/cart/lineItem/*",
		"store/cart/lineItem/created",
		"store/cart/lineItem/updated",
		"store/cart/lineItem/deleted",
	},
	"order": {
		"store/order/*",
		"store/order/created",
		"store/order/updated",
		"store/order/archived",
		"store/order/statusUpdated",
		"store/order/message/created",
		"store/order/refund/created",
	},
	"customer": {
		"store/customer/*",
		"store/customer/created",
		"store/customer/updated",
		"store/customer/deleted",
		"store/customer/address/created",
		"store/customer/address/updated",
		"store/customer/address/deleted",
		"store/customer/payment/instrument/default/updated",
	},
	"product": {
		"store/product/*",
		"store/product/created",
		"store/product/updated",
		"store/product/deleted",
		"store/product/inventory/updated",
		"store/product/inventory/order/updated",
	},
	"category": {
		"store/category/*",
		"store/category/created",
		"store/category/updated",
		"store/category/deleted",
	},
	"sku": {
		"store/sku/*",
		"store/sku/created",
		"store/sku/updated",
		"store/sku/deleted",
		"store/sku/inventory/updated",
		"store/sku/inventory/order/updated",
	},
}

// WebhookScopes returns the known scopes for a resource (cart, order, ...).
func WebhookScopes(resource string) []string {
	return slices.Clone(webhookScopes[resource])
}

// WebhookResources returns the resource groups in sorted order.
func WebhookResources() []string {
	resources := make([]string, 0, len(webhookScopes))
	for r := range webhookScopes {
		resources = append(resources, r)
	}
	slices.Sort(resources)
	return resources
}

// IsValidWebhookScope reports whether scope is one of the known scopes.
func IsValidWebhookScope(scope string) bool {
	parts := strings.SplitN(scope, "/", 3)
	if len(parts) < 3 || parts[0] != "store" {
		return false
	}
	return slices.Contains(webhookScopes[parts[1]], scope)
}

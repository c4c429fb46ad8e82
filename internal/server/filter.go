package server

import (
	"strings"

	"github.com/sandeep2k01/BUYFLUX-sub000/internal/datamodels/product"
)

// filterByKeyword 在内存中按商品名做简单模糊匹配
func filterByKeyword(list []*product.Product, keyword string) []*product.Product {
	kw := strings.ToLower(keyword)
	filtered := make([]*product.Product, 0, len(list))
	for _, p := range list {
		if strings.Contains(strings.ToLower(p.Name), kw) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

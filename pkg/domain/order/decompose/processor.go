package decompose

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/opst/prodplan/pkg/domain"
	"github.com/opst/prodplan/pkg/utils"
)

// selectProcessor chooses a configured processor generating products of the class.
//
// Only enabled processors of the processor class are chosen. Among them, it prefers
//
// 1. processors requested by the order,
//
// 2. processors configured for the processing mode of the order, to ones without modes,
//
// 3. newer processor versions, and then
//
// 4. newer configuration versions.
//
// Processors configured for other modes are never chosen.
func selectProcessor(
	class domain.ProductClass, processors []domain.ConfiguredProcessor, order domain.ProcessingOrder,
) (domain.ConfiguredProcessor, bool) {
	candidates := utils.Filter(processors, func(p domain.ConfiguredProcessor) bool {
		if !p.Enabled || p.Mission != class.Mission || p.ProcessorClass != class.ProcessorClass {
			return false
		}
		return p.Mode == "" || p.Mode == order.ProcessingMode
	})
	if len(candidates) == 0 {
		return domain.ConfiguredProcessor{}, false
	}

	requested := map[string]struct{}{}
	for _, r := range order.RequestedProcessors {
		requested[r] = struct{}{}
	}
	isRequested := func(p domain.ConfiguredProcessor) bool {
		_, ok := requested[p.Identifier]
		return ok
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if ra, rb := isRequested(a), isRequested(b); ra != rb {
			return ra
		}
		if ma, mb := a.Mode != "", b.Mode != ""; ma != mb {
			return ma
		}
		if c := compareVersion(a.ProcessorVersion, b.ProcessorVersion); c != 0 {
			return 0 < c
		}
		return 0 < compareVersion(a.ConfigurationVersion, b.ConfigurationVersion)
	})
	return candidates[0], true
}

// compareVersion compares versions like "1.10.2" or "2024-01-03".
//
// Versions are split into numeric and other segments.
// Numeric segments are compared as numbers, and others are compared as texts.
//
// Returns positive if a is newer than b, negative if older, and 0 if they are the same.
func compareVersion(a, b string) int {
	sa, sb := segments(a), segments(b)
	for i := 0; i < len(sa) && i < len(sb); i++ {
		x, errx := strconv.ParseUint(sa[i], 10, 64)
		y, erry := strconv.ParseUint(sb[i], 10, 64)
		if errx == nil && erry == nil {
			if x != y {
				if x < y {
					return -1
				}
				return 1
			}
			continue
		}
		if c := strings.Compare(sa[i], sb[i]); c != 0 {
			return c
		}
	}
	return len(sa) - len(sb)
}

func segments(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

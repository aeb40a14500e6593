package browser

import "github.com/rewired-gh/otawatch/internal/logger"

// DismissPopups clicks every selector present on the page, such as cookie consent
// and sign-in banners. Failures are ignored. It returns the number of clicks made.
func DismissPopups(p Page, selectors []string) int {
	closed := 0
	for _, sel := range selectors {
		if !p.Has(sel) {
			continue
		}
		if err := p.Click(sel); err != nil {
			logger.Debug("Could not close popup %s: %v", sel, err)
			continue
		}
		logger.Debug("Closed popup: %s", sel)
		closed++
	}
	return closed
}

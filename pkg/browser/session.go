package browser

import (
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Navigate loads url in the session's page and waits for the load event.
// Only absolute http(s) URLs are accepted; everything else is refused
// before touching the page.
func (d *Driver) Navigate(url string, timeout time.Duration) error {
	lower := strings.ToLower(strings.TrimSpace(url))
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return fmt.Errorf("%w: only http/https URLs allowed, got %q", ErrNavigation, url)
	}

	page, err := d.activePage()
	if err != nil {
		return err
	}

	_, err = page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(d.timeoutMS(timeout)),
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNavigation, url, err)
	}
	return nil
}

// Fill types value into the element matching selector.
func (d *Driver) Fill(selector, value string, timeout time.Duration) error {
	page, err := d.activePage()
	if err != nil {
		return err
	}
	err = page.Fill(selector, value, playwright.PageFillOptions{
		Timeout: playwright.Float(d.timeoutMS(timeout)),
	})
	if err != nil {
		return classifyActErr(selector, err)
	}
	return nil
}

// Select picks the option with the given value in a <select> element.
func (d *Driver) Select(selector, value string, timeout time.Duration) error {
	page, err := d.activePage()
	if err != nil {
		return err
	}
	_, err = page.SelectOption(selector, playwright.SelectOptionValues{
		Values: &[]string{value},
	}, playwright.PageSelectOptionOptions{
		Timeout: playwright.Float(d.timeoutMS(timeout)),
	})
	if err != nil {
		return classifyActErr(selector, err)
	}
	return nil
}

// Check sets a checkbox or radio element to the requested state.
func (d *Driver) Check(selector string, checked bool, timeout time.Duration) error {
	page, err := d.activePage()
	if err != nil {
		return err
	}
	ms := playwright.Float(d.timeoutMS(timeout))
	if checked {
		err = page.Check(selector, playwright.PageCheckOptions{Timeout: ms})
	} else {
		err = page.Uncheck(selector, playwright.PageUncheckOptions{Timeout: ms})
	}
	if err != nil {
		return classifyActErr(selector, err)
	}
	return nil
}

// Click clicks the element matching selector.
func (d *Driver) Click(selector string, timeout time.Duration) error {
	page, err := d.activePage()
	if err != nil {
		return err
	}
	err = page.Click(selector, playwright.PageClickOptions{
		Timeout: playwright.Float(d.timeoutMS(timeout)),
	})
	if err != nil {
		return classifyActErr(selector, err)
	}
	return nil
}

// FindAndClick clicks the first element matching selector whose visible
// text contains text (case-insensitive). Used by playbooks that must pick
// one entry out of a result list, e.g. the listing that matches the user.
func (d *Driver) FindAndClick(selector, text string, timeout time.Duration) error {
	page, err := d.activePage()
	if err != nil {
		return err
	}
	locator := page.Locator(selector).Filter(playwright.LocatorFilterOptions{
		HasText: text,
	}).First()
	err = locator.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(d.timeoutMS(timeout)),
	})
	if err != nil {
		return classifyActErr(selector, err)
	}
	return nil
}

// ScrollTo brings the element matching selector into view without
// interacting with it.
func (d *Driver) ScrollTo(selector string, timeout time.Duration) error {
	page, err := d.activePage()
	if err != nil {
		return err
	}
	err = page.Locator(selector).First().ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{
		Timeout: playwright.Float(d.timeoutMS(timeout)),
	})
	if err != nil {
		return classifyActErr(selector, err)
	}
	return nil
}

// WaitFor blocks until the element matching selector is attached to the
// DOM, failing with ErrWaitTimeout once timeout elapses.
func (d *Driver) WaitFor(selector string, timeout time.Duration) error {
	page, err := d.activePage()
	if err != nil {
		return err
	}
	_, err = page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(d.timeoutMS(timeout)),
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWaitTimeout, selector, err)
	}
	return nil
}

// Evaluate runs script in the page and returns its result. Used for
// read-only inspection and for the recorder's capture instrumentation;
// playbook steps never reach it directly.
func (d *Driver) Evaluate(script string) (interface{}, error) {
	page, err := d.activePage()
	if err != nil {
		return nil, err
	}
	result, err := page.Evaluate(script)
	if err != nil {
		return nil, fmt.Errorf("evaluate failed: %w", err)
	}
	return result, nil
}

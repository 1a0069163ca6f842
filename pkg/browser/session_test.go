package browser

import (
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The playwright enum constants are exported as pointers; the option
// structs must take them as-is.
func TestPlaywrightOptionStates(t *testing.T) {
	gotoOpts := playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateLoad}
	require.NotNil(t, gotoOpts.WaitUntil)
	assert.Equal(t, playwright.WaitUntilState("load"), *gotoOpts.WaitUntil)

	wait := playwright.PageWaitForSelectorOptions{State: playwright.WaitForSelectorStateAttached}
	require.NotNil(t, wait.State)
	assert.Equal(t, playwright.WaitForSelectorState("attached"), *wait.State)
}

func TestNavigateRejectsNonHTTPSchemes(t *testing.T) {
	d := NewDriver(Options{})

	for _, url := range []string{
		"javascript:alert(1)",
		"file:///etc/passwd",
		"ftp://example.com",
		"/relative/path",
	} {
		err := d.Navigate(url, time.Second)
		assert.ErrorIs(t, err, ErrNavigation, "url %q", url)
	}
}

func TestOperationsWithoutSession(t *testing.T) {
	d := NewDriver(Options{})

	assert.ErrorIs(t, d.Navigate("https://example.com", time.Second), ErrNoSession)
	assert.ErrorIs(t, d.Fill("#x", "v", time.Second), ErrNoSession)
	assert.ErrorIs(t, d.Click("#x", time.Second), ErrNoSession)
	assert.ErrorIs(t, d.WaitFor("#x", time.Second), ErrNoSession)
	assert.Empty(t, d.URL())
}

func TestTimeoutMSAppliesDefault(t *testing.T) {
	d := NewDriver(Options{OperationTimeout: 10 * time.Second})

	assert.Equal(t, float64(2000), d.timeoutMS(2*time.Second))
	assert.Equal(t, float64(10000), d.timeoutMS(0))
	assert.Equal(t, float64(10000), d.timeoutMS(-time.Second))
}

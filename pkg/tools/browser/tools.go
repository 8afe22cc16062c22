package browser

import (
	"context"
	"fmt"

	"github.com/entrhq/compass/pkg/tools"
	"github.com/playwright-community/playwright-go"
)

// NavigateTool navigates the browser session to a URL.
type NavigateTool struct {
	manager *SessionManager
}

// NewNavigateTool creates a navigate tool.
func NewNavigateTool(manager *SessionManager) *NavigateTool {
	return &NavigateTool{manager: manager}
}

func (t *NavigateTool) Name() string {
	return "browser_navigate"
}

func (t *NavigateTool) Description() string {
	return "Navigate the browser to a URL and wait for the page to load."
}

func (t *NavigateTool) Schema() map[string]any {
	return tools.ObjectSchema(map[string]any{
		"url": tools.StringProperty("URL to navigate to (must include protocol, e.g. https://example.com)"),
	}, []string{"url"})
}

func (t *NavigateTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	url, _ := tools.StringArg(args, "url")
	if url == "" {
		return "", fmt.Errorf("url is required")
	}
	if err := t.manager.hostAllowed(url); err != nil {
		return "", err
	}

	page, err := t.manager.ensureSession()
	if err != nil {
		return "", err
	}

	waitUntil := playwright.WaitUntilStateLoad
	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: waitUntil,
		Timeout:   timeoutOption(),
	}); err != nil {
		return "", fmt.Errorf("navigation failed: %w", err)
	}

	title, _ := page.Title()
	return fmt.Sprintf("Navigated to %s (title: %q)", page.URL(), title), nil
}

// ExtractContentTool returns the visible text of the current page or of a
// selected element.
type ExtractContentTool struct {
	manager *SessionManager
}

// NewExtractContentTool creates an extract content tool.
func NewExtractContentTool(manager *SessionManager) *ExtractContentTool {
	return &ExtractContentTool{manager: manager}
}

func (t *ExtractContentTool) Name() string {
	return "browser_extract"
}

func (t *ExtractContentTool) Description() string {
	return "Extract visible text from the current page, or from a specific element when a CSS selector is given."
}

func (t *ExtractContentTool) Schema() map[string]any {
	return tools.ObjectSchema(map[string]any{
		"selector": tools.StringProperty("Optional CSS selector to extract from; defaults to the page body"),
	}, nil)
}

func (t *ExtractContentTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	page, err := t.manager.ensureSession()
	if err != nil {
		return "", err
	}

	selector, _ := tools.StringArg(args, "selector")
	if selector == "" {
		selector = "body"
	}

	content, err := page.Locator(selector).First().InnerText()
	if err != nil {
		return "", fmt.Errorf("extraction failed for selector %q: %w", selector, err)
	}

	if len(content) > DefaultMaxContentLength {
		return content[:DefaultMaxContentLength] +
			fmt.Sprintf("\n\n[Content truncated: %d of %d characters shown]", DefaultMaxContentLength, len(content)), nil
	}
	return content, nil
}

// ClickTool clicks an element on the current page.
type ClickTool struct {
	manager *SessionManager
}

// NewClickTool creates a click tool.
func NewClickTool(manager *SessionManager) *ClickTool {
	return &ClickTool{manager: manager}
}

func (t *ClickTool) Name() string {
	return "browser_click"
}

func (t *ClickTool) Description() string {
	return "Click the element matching a CSS selector on the current page."
}

func (t *ClickTool) Schema() map[string]any {
	return tools.ObjectSchema(map[string]any{
		"selector": tools.StringProperty("CSS selector of the element to click"),
	}, []string{"selector"})
}

func (t *ClickTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	selector, _ := tools.StringArg(args, "selector")
	if selector == "" {
		return "", fmt.Errorf("selector is required")
	}

	page, err := t.manager.ensureSession()
	if err != nil {
		return "", err
	}

	if err := page.Locator(selector).First().Click(playwright.LocatorClickOptions{
		Timeout: timeoutOption(),
	}); err != nil {
		return "", fmt.Errorf("click failed for selector %q: %w", selector, err)
	}
	return fmt.Sprintf("Clicked %q; page is now %s", selector, page.URL()), nil
}

// FillTool types a value into a form field.
type FillTool struct {
	manager *SessionManager
}

// NewFillTool creates a fill tool.
func NewFillTool(manager *SessionManager) *FillTool {
	return &FillTool{manager: manager}
}

func (t *FillTool) Name() string {
	return "browser_fill"
}

func (t *FillTool) Description() string {
	return "Fill the form field matching a CSS selector with a value."
}

func (t *FillTool) Schema() map[string]any {
	return tools.ObjectSchema(map[string]any{
		"selector": tools.StringProperty("CSS selector of the input to fill"),
		"value":    tools.StringProperty("Text to enter into the field"),
	}, []string{"selector", "value"})
}

func (t *FillTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	selector, _ := tools.StringArg(args, "selector")
	value, _ := tools.StringArg(args, "value")
	if selector == "" {
		return "", fmt.Errorf("selector is required")
	}

	page, err := t.manager.ensureSession()
	if err != nil {
		return "", err
	}

	if err := page.Locator(selector).First().Fill(value, playwright.LocatorFillOptions{
		Timeout: timeoutOption(),
	}); err != nil {
		return "", fmt.Errorf("fill failed for selector %q: %w", selector, err)
	}
	return fmt.Sprintf("Filled %q", selector), nil
}

// RegisterAll adds every browser tool to the registry.
func RegisterAll(registry *tools.Registry, manager *SessionManager) {
	registry.Register(NewNavigateTool(manager))
	registry.Register(NewExtractContentTool(manager))
	registry.Register(NewClickTool(manager))
	registry.Register(NewFillTool(manager))
}

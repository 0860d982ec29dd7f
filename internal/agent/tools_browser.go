package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/semanticbrowser/kb/internal/browser"
	"github.com/semanticbrowser/kb/internal/errs"
	"github.com/semanticbrowser/kb/internal/tools"
	"github.com/semanticbrowser/kb/internal/validator"
)

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", tools.ErrMissingRequiredArg, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", tools.ErrInvalidArgType, key)
	}
	return s, nil
}

func optionalBoolArg(args map[string]any, key string, def bool) bool {
	v, ok := args[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// BrowserTools builds the browser_* ToolDefinitions of spec.md §4.11's
// catalog, each dispatching through exec to the Tab bound to the calling
// task.
func BrowserTools(exec BrowserExecutor) []*tools.ToolDefinition {
	return []*tools.ToolDefinition{
		browserNavigateTool(exec),
		browserClickTool(exec),
		browserFillTool(exec),
		browserGetContentTool(exec),
		browserScreenshotTool(exec),
		browserExtractDataTool(exec),
	}
}

func taskIDFrom(args map[string]any) string {
	if v, ok := args["__task_id"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return "default"
}

func browserNavigateTool(exec BrowserExecutor) *tools.ToolDefinition {
	return &tools.ToolDefinition{
		Name:        "browser_navigate",
		Description: "Navigate the task's browser tab to a URL and return the final URL after redirects.",
		Category:    tools.CategoryBrowser,
		Schema: tools.ParamsSchema{
			Required: []string{"url"},
			Properties: map[string]tools.Property{
				"url": {Type: "string", Description: "Absolute http(s) URL to load"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			url, err := stringArg(args, "url")
			if err != nil {
				return "", err
			}
			if err := validator.ValidateURL(url); err != nil {
				return "", err
			}
			tab, err := exec.Tab(ctx, taskIDFrom(args))
			if err != nil {
				return "", err
			}
			finalURL, err := tab.Navigate(url, browser.NavigateOpts{Wait: browser.WaitLoad})
			if err != nil {
				return "", err
			}
			return finalURL, nil
		},
	}
}

func browserClickTool(exec BrowserExecutor) *tools.ToolDefinition {
	return &tools.ToolDefinition{
		Name:        "browser_click",
		Description: "Click the element matching a CSS selector on the task's current page.",
		Category:    tools.CategoryBrowser,
		Schema: tools.ParamsSchema{
			Required: []string{"selector"},
			Properties: map[string]tools.Property{
				"selector": {Type: "string", Description: "CSS selector of the element to click"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			selector, err := stringArg(args, "selector")
			if err != nil {
				return "", err
			}
			tab, err := exec.Tab(ctx, taskIDFrom(args))
			if err != nil {
				return "", err
			}
			if err := tab.Click(selector); err != nil {
				return "", err
			}
			return "clicked " + selector, nil
		},
	}
}

func browserFillTool(exec BrowserExecutor) *tools.ToolDefinition {
	return &tools.ToolDefinition{
		Name:        "browser_fill",
		Description: "Type a value into the input matching a CSS selector, replacing any existing content.",
		Category:    tools.CategoryBrowser,
		Schema: tools.ParamsSchema{
			Required: []string{"selector", "value"},
			Properties: map[string]tools.Property{
				"selector": {Type: "string", Description: "CSS selector of the input"},
				"value":    {Type: "string", Description: "Text to enter"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			selector, err := stringArg(args, "selector")
			if err != nil {
				return "", err
			}
			value, err := stringArg(args, "value")
			if err != nil {
				return "", err
			}
			tab, err := exec.Tab(ctx, taskIDFrom(args))
			if err != nil {
				return "", err
			}
			if err := tab.Fill(selector, value); err != nil {
				return "", err
			}
			return "filled " + selector, nil
		},
	}
}

func browserGetContentTool(exec BrowserExecutor) *tools.ToolDefinition {
	return &tools.ToolDefinition{
		Name:        "browser_get_content",
		Description: "Return the current page's HTML or extracted text.",
		Category:    tools.CategoryBrowser,
		Schema: tools.ParamsSchema{
			Properties: map[string]tools.Property{
				"format": {Type: "string", Description: "html or text", Default: "html", Enum: []any{"html", "text"}},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			format := browser.ContentHTML
			if f, ok := args["format"].(string); ok && f == "text" {
				format = browser.ContentText
			}
			tab, err := exec.Tab(ctx, taskIDFrom(args))
			if err != nil {
				return "", err
			}
			return tab.GetContent(format)
		},
	}
}

func browserScreenshotTool(exec BrowserExecutor) *tools.ToolDefinition {
	return &tools.ToolDefinition{
		Name:        "browser_screenshot",
		Description: "Capture a base64-encoded PNG screenshot of the current page.",
		Category:    tools.CategoryBrowser,
		Schema: tools.ParamsSchema{
			Properties: map[string]tools.Property{
				"full_page": {Type: "boolean", Description: "Capture the full scrollable page instead of the viewport", Default: false},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			tab, err := exec.Tab(ctx, taskIDFrom(args))
			if err != nil {
				return "", err
			}
			png, err := tab.Screenshot(optionalBoolArg(args, "full_page", false))
			if err != nil {
				return "", err
			}
			return base64.StdEncoding.EncodeToString(png), nil
		},
	}
}

func browserExtractDataTool(exec BrowserExecutor) *tools.ToolDefinition {
	return &tools.ToolDefinition{
		Name:        "browser_extract_data",
		Description: "Extract the text content of a set of named CSS selectors from the current page, as a JSON object.",
		Category:    tools.CategoryBrowser,
		Schema: tools.ParamsSchema{
			Required: []string{"selectors"},
			Properties: map[string]tools.Property{
				"selectors": {Type: "object", Description: "Map of field name to CSS selector"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			raw, ok := args["selectors"].(map[string]any)
			if !ok {
				return "", fmt.Errorf("%w: selectors must be an object of name to CSS selector", tools.ErrInvalidArgType)
			}
			selectors := make(map[string]string, len(raw))
			for k, v := range raw {
				s, ok := v.(string)
				if !ok {
					return "", errs.New(errs.KindInvalidResponse, "selectors values must be strings")
				}
				selectors[k] = s
			}
			tab, err := exec.Tab(ctx, taskIDFrom(args))
			if err != nil {
				return "", err
			}
			data := tab.ExtractData(selectors)
			out, err := json.Marshal(data)
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}

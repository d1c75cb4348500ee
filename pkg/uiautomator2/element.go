package uiautomator2

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Element represents a UI element on the device.
type Element struct {
	id     string
	client *Client
}

// ID returns the element ID.
func (e *Element) ID() string {
	return e.id
}

// FindElement finds a single element. A locator that matches nothing
// returns an error wrapping ErrNoSuchElement.
func (c *Client) FindElement(ctx context.Context, strategy, selector string) (*Element, error) {
	return c.FindElementIn(ctx, "", strategy, selector)
}

// FindElementIn finds an element below the element contextID. An empty
// contextID searches the whole window.
func (c *Client) FindElementIn(ctx context.Context, contextID, strategy, selector string) (*Element, error) {
	req := FindElementRequest{
		Strategy: strategy,
		Selector: selector,
		Context:  contextID,
	}

	data, err := c.request(ctx, "POST", c.sessionPath("/element"), req)
	if err != nil {
		return nil, err
	}

	id := elementID(gjson.GetBytes(data, "value"))
	if id == "" {
		return nil, fmt.Errorf("%w: %s=%s", ErrNoSuchElement, strategy, selector)
	}
	return &Element{id: id, client: c}, nil
}

// elementID accepts both the legacy ELEMENT key and the W3C element key.
func elementID(v gjson.Result) string {
	if id := v.Get("ELEMENT").String(); id != "" {
		return id
	}
	return v.Get("element-6066-11e4-a52e-4f735466cecf").String()
}

// TextSelector builds a UiSelector expression matching text exactly.
func TextSelector(text string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(text)
	return fmt.Sprintf(`new UiSelector().text("%s")`, escaped)
}

// Click taps the element.
func (e *Element) Click(ctx context.Context) error {
	_, err := e.client.request(ctx, "POST", e.client.sessionPath("/element/"+e.id+"/click"), nil)
	return err
}

// Text returns the element's text content.
func (e *Element) Text(ctx context.Context) (string, error) {
	data, err := e.client.request(ctx, "GET", e.client.sessionPath("/element/"+e.id+"/text"), nil)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(data, "value").String(), nil
}

// Rect returns the element's bounds.
func (e *Element) Rect(ctx context.Context) (ElementRect, error) {
	data, err := e.client.request(ctx, "GET", e.client.sessionPath("/element/"+e.id+"/rect"), nil)
	if err != nil {
		return ElementRect{}, err
	}

	var resp struct {
		Value ElementRect `json:"value"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return ElementRect{}, fmt.Errorf("parse rect response: %w", err)
	}
	return resp.Value, nil
}

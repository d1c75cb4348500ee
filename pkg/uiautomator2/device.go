package uiautomator2

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
)

// Back presses the system back button.
func (c *Client) Back(ctx context.Context) error {
	_, err := c.request(ctx, "POST", c.sessionPath("/back"), nil)
	return err
}

// Source returns the current window hierarchy as XML.
func (c *Client) Source(ctx context.Context) (string, error) {
	data, err := c.request(ctx, "GET", c.sessionPath("/source"), nil)
	if err != nil {
		return "", err
	}
	v := gjson.GetBytes(data, "value")
	if v.Type != gjson.String {
		return "", fmt.Errorf("unexpected source response")
	}
	return v.String(), nil
}

// CurrentPackage returns the package name of the foreground app.
func (c *Client) CurrentPackage(ctx context.Context) (string, error) {
	data, err := c.request(ctx, "GET", c.sessionPath("/appium/device/current_package"), nil)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(data, "value").String(), nil
}

package utils

import "github.com/gofiber/fiber/v2"

// IPAddress prefers proxy headers (Cloudflare, then nginx) over the socket address
func IPAddress(c *fiber.Ctx) string {
	for _, header := range []string{"CF-Connecting-IP", "X-Real-Ip", "X-Forwarded-For"} {
		if ip := c.Get(header); ip != "" {
			return ip
		}
	}
	return c.IP()
}

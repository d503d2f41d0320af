package exchangerate

import "go.uber.org/fx"

var Module = fx.Module("exchangerate",
	fx.Provide(NewClient),
	fx.Provide(func(c *Client) Provider { return c }),
)

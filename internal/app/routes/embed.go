package routes

import (
	"remote-ui/go-backend/internal/domains/remoteui"
	"remote-ui/go-backend/pkg/models"
)

func newEmbed() *remoteui.Controller {
	return remoteui.Define(func(s *remoteui.Setup) remoteui.RenderFunc {
		panel := func() models.UIElement {
			return models.Frame(models.AxisColumn, models.Embed("../form")).
				With("padding", "a2").
				With("basis", 200).
				With("border", true).
				With("rounded", true)
		}
		return func(session *remoteui.Session) models.UIElement {
			return models.Frame(models.AxisColumn, panel(), panel()).With("gap", 2)
		}
	})
}

package routes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/atomic"

	"remote-ui/go-backend/internal/domains/contracts"
	"remote-ui/go-backend/internal/domains/remoteui"
	"remote-ui/go-backend/internal/domains/route"
	"remote-ui/go-backend/pkg/models"
)

var incrementDelay = 100 * time.Millisecond

type greeting struct {
	Hello  string `json:"hello"`
	Output string `json:"output"`
}

func newIndex() *remoteui.Controller {
	count := atomic.NewInt64(0)
	return remoteui.Define(func(s *remoteui.Setup) remoteui.RenderFunc {
		increment := s.Action("increment", func(ctx context.Context, event remoteui.ActionEvent) error {
			select {
			case <-time.After(incrementDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			count.Inc()
			s.Controller().Update()
			return nil
		}, remoteui.WaitForCompletion())

		form := remoteui.DefineForm[greeting](s, "form")
		submit := form.Action("submit", func(ctx context.Context, event remoteui.FormEvent[greeting]) error {
			next := event.Data
			next.Output = strings.ToUpper(next.Hello)
			form.Set(remoteui.To(event.Session), next)
			return nil
		})

		throwError := s.Action("throwError", func(ctx context.Context, event remoteui.ActionEvent) error {
			return contracts.NewClientError("This is an error!")
		}, remoteui.WaitForCompletion())

		redirect := s.Action("redirect", func(ctx context.Context, event remoteui.ActionEvent) error {
			target := route.MustParse("/table")
			event.Session.Redirect(&target)
			return nil
		})

		model := form.Model()
		return func(session *remoteui.Session) models.UIElement {
			return models.Frame(models.AxisColumn,
				models.Frame(models.AxisRow,
					models.Input(model["hello"]).With("fill", true),
					models.Button("Submit", submit),
				).With("gap", 2),
				models.Output(model["output"]),
				models.Frame(models.AxisRow,
					models.Label(fmt.Sprintf("Count: %d", count.Load())),
					models.Button("Increment", increment),
					models.Button("Throw", throwError),
				).With("gap", 2),
				models.Frame(models.AxisRow,
					models.LinkButton("Link", "/form"),
					models.Button("Redirect", redirect),
				).With("gap", 2),
			).With("gap", 2)
		}
	})
}

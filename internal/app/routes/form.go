package routes

import (
	"context"
	"strconv"
	"time"

	"remote-ui/go-backend/internal/domains/mutation"
	"remote-ui/go-backend/internal/domains/remoteui"
	"remote-ui/go-backend/pkg/models"
)

type home struct {
	Address   string `json:"address"`
	Available bool   `json:"available"`
}

type person struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Exists bool   `json:"exists"`
	Home   home   `json:"home"`
}

type personForm struct {
	Person person `json:"person"`
}

const personFormSchema = `{
	"type": "object",
	"properties": {
		"person": {
			"type": "object",
			"properties": {
				"status": {"enum": ["here", "there"]}
			}
		}
	}
}`

func defaultPersonForm() personForm {
	return personForm{Person: person{
		Name:   "Foo",
		Status: "here",
		Exists: true,
		Home:   home{Address: "there"},
	}}
}

func newPersonForm() *remoteui.Controller {
	return remoteui.Define(func(s *remoteui.Setup) remoteui.RenderFunc {
		form := remoteui.DefineForm(s, "form",
			remoteui.WithDefault(func(*remoteui.Session) personForm { return defaultPersonForm() }),
			remoteui.WithSchema[personForm]([]byte(personFormSchema)),
		)

		submit := form.Action("submit", func(ctx context.Context, event remoteui.FormEvent[personForm]) error {
			m, err := remoteui.FormEventMutation(event)
			if err != nil {
				return err
			}
			form.Update(remoteui.All, m)
			return nil
		})

		reset := form.Action("reset", func(ctx context.Context, event remoteui.FormEvent[personForm]) error {
			return form.UpdateDiff(remoteui.To(event.Session), event.Data, defaultPersonForm())
		})

		test := s.Action("test", func(ctx context.Context, event remoteui.ActionEvent) error {
			name := strconv.FormatInt(time.Now().UnixMilli(), 10)
			form.Update(remoteui.All, mutation.Assign([]string{"person"}, "name", name))
			return nil
		})

		fields := renderStruct(person{}, form.Ref("person"), submit, true)
		return func(session *remoteui.Session) models.UIElement {
			return models.Frame(models.AxisColumn,
				fields,
				models.Frame(models.AxisRow,
					models.Button("Test", test),
					models.Button("Reset", reset),
				),
			)
		}
	})
}

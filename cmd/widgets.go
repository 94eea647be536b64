package cmd

import (
	"context"
	"fmt"

	"github.com/koopa0/widgetd/internal/schema"
	"github.com/koopa0/widgetd/internal/widget"
)

// demoWidgets returns the widget definitions the stock widgetd binary
// serves. Real deployments replace these with definitions whose
// handlers call out to their own backends; the protocol surface stays
// identical.
func demoWidgets() []widget.Definition {
	return []widget.Definition{
		{
			Component:   "task-board",
			Title:       "Task Board",
			Description: "Show a kanban board of tasks, optionally filtered by assignee.",
			Schema: schema.Object(map[string]*schema.Node{
				"assignee": schema.String().Describe("Filter tasks by assignee name").Optional(),
				"limit":    schema.Number().Describe("Maximum tasks per column").Coerce().Default(float64(10)),
			}),
			Handler: widget.HandlerFunc(taskBoard),
			Meta: &widget.Display{
				Invoking:    "Collecting tasks",
				Invoked:     "Here is the board",
				Description: "A kanban board with one column per task status.",
				Accessible:  true,
			},
		},
		{
			Component:   "weather-card",
			Title:       "Weather Card",
			Description: "Show current weather for a city.",
			Schema: schema.Object(map[string]*schema.Node{
				"city":  schema.String().Describe("City name"),
				"units": schema.String().Describe("Unit system: metric or imperial").Default("metric"),
			}),
			Handler: widget.HandlerFunc(weatherCard),
			Meta: &widget.Display{
				Invoking:    "Checking the sky",
				Invoked:     "Weather is in",
				Description: "A card with temperature and conditions for one city.",
				Accessible:  true,
			},
		},
	}
}

// demoTasks is the static data set behind the task-board widget.
var demoTasks = []map[string]any{
	{"id": "T-1", "title": "Wire asset pipeline", "status": "todo", "assignee": "ada"},
	{"id": "T-2", "title": "Review schema translator", "status": "in-progress", "assignee": "lin"},
	{"id": "T-3", "title": "Ship session manager", "status": "in-progress", "assignee": "ada"},
	{"id": "T-4", "title": "Containment tests", "status": "done", "assignee": "sam"},
}

func taskBoard(_ context.Context, args map[string]any) (*widget.Result, error) {
	assignee, _ := args["assignee"].(string)
	limit := int(args["limit"].(float64))

	columns := map[string][]map[string]any{}
	count := 0
	for _, task := range demoTasks {
		if assignee != "" && task["assignee"] != assignee {
			continue
		}
		status := task["status"].(string)
		if len(columns[status]) >= limit {
			continue
		}
		columns[status] = append(columns[status], task)
		count++
	}

	text := fmt.Sprintf("%d tasks on the board", count)
	if assignee != "" {
		text = fmt.Sprintf("%d tasks assigned to %s", count, assignee)
	}

	return &widget.Result{
		Text: text,
		Data: map[string]any{"columns": columns},
	}, nil
}

func weatherCard(_ context.Context, args map[string]any) (*widget.Result, error) {
	city := args["city"].(string)
	units := args["units"].(string)

	// Deterministic pseudo-weather keyed by city name; stands in for a
	// real forecast lookup.
	temp := 8 + len(city)%20
	unit := "°C"
	if units == "imperial" {
		temp = temp*9/5 + 32
		unit = "°F"
	}
	conditions := []string{"clear", "cloudy", "rain", "windy"}[len(city)%4]

	return &widget.Result{
		Text: fmt.Sprintf("%s: %d%s, %s", city, temp, unit, conditions),
		Data: map[string]any{
			"city":       city,
			"temp":       temp,
			"units":      units,
			"conditions": conditions,
		},
	}, nil
}

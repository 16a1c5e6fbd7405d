package probes

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/apiprobe/internal/schema"
	"github.com/roach88/apiprobe/internal/session"
	"github.com/roach88/apiprobe/internal/suite"
)

// Resource describes one CRUD collection on the target service.
type Resource struct {
	Kind session.Kind

	// Name is both the suite name and the path segment under /api.
	Name string

	// Create builds the payload for a new entity.
	Create func() map[string]any

	// Update is sent on update and read back field by field.
	Update map[string]any
}

// envelopeKeys are the keys a wrapped response may nest this resource under,
// plural first: {"tasks": [...]} or {"task": {...}}.
func (r Resource) envelopeKeys() []string {
	return []string{r.Name, string(r.Kind)}
}

// Path is the collection path.
func (r Resource) Path() string {
	return "/api/" + r.Name
}

// Resources are the collections exercised, in pipeline order.
var Resources = []Resource{
	{
		Kind: session.KindTask,
		Name: "tasks",
		Create: func() map[string]any {
			return map[string]any{
				"title":       "apiprobe task",
				"description": "created by the conformance harness",
				"status":      "Pending",
				"priority":    "Medium",
				"dueDate":     time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
			}
		},
		Update: map[string]any{"status": "In Progress"},
	},
	{
		Kind: session.KindSkill,
		Name: "skills",
		Create: func() map[string]any {
			return map[string]any{
				"name":     "Go",
				"category": "Programming",
				"level":    "Beginner",
				"progress": 10,
			}
		},
		Update: map[string]any{"level": "Intermediate", "progress": 40},
	},
	{
		Kind: session.KindChallenge,
		Name: "challenges",
		Create: func() map[string]any {
			return map[string]any{
				"title":       "apiprobe challenge",
				"description": "thirty days of focus",
				"duration":    30,
				"status":      "Active",
			}
		},
		Update: map[string]any{"status": "Completed"},
	},
	{
		Kind: session.KindPomodoro,
		Name: "pomodoro",
		Create: func() map[string]any {
			return map[string]any{
				"duration":  25,
				"type":      "work",
				"completed": false,
			}
		},
		Update: map[string]any{"completed": true},
	},
	{
		Kind: session.KindMood,
		Name: "moods",
		Create: func() map[string]any {
			return map[string]any{
				"mood":   "happy",
				"energy": 7,
				"note":   "logged by apiprobe",
			}
		},
		Update: map[string]any{"mood": "calm", "energy": 5},
	},
}

// CRUD builds the create, list, update, read-back, delete, and
// confirm-deletion round trip for r. The create step records the fixture
// id; every later step reads it.
func CRUD(r Resource) suite.Suite {
	return suite.Suite{
		Name:         r.Name,
		RequiresAuth: true,
		Checks: []suite.Check{
			{Name: "create", Run: r.checkCreate},
			{Name: "list by user", Run: r.checkListed},
			{Name: "update", Run: r.checkUpdate},
			{Name: "read back update", Run: r.checkReadBack},
			{Name: "delete", Run: r.checkDelete},
			{Name: "confirm deletion", Run: r.checkGone},
		},
	}
}

func (r Resource) checkCreate(ctx context.Context, env *suite.Env) suite.CheckResult {
	out := env.Client.Post(ctx, r.Path(), env.State.Token, r.Create())
	if !out.OK {
		return suite.Fail("create failed: %s", out)
	}
	id := entityID(out.Body, r.envelopeKeys()...)
	if id == "" {
		return suite.Fail("create response carried no id")
	}
	env.State.SetFixture(r.Kind, id)
	return suite.Pass("created %s %s", r.Kind, id)
}

// list fetches the current user's collection.
func (r Resource) list(ctx context.Context, env *suite.Env) ([]any, *suite.CheckResult) {
	userID, fail := requireUser(env)
	if fail != nil {
		return nil, fail
	}
	out := env.Client.Get(ctx, r.Path()+"/user/"+userID, env.State.Token)
	if !out.OK {
		res := suite.Fail("list failed: %s", out)
		return nil, &res
	}
	items, ok := listFrom(out.Body, r.envelopeKeys()...)
	if !ok {
		res := suite.Fail("list response is not a collection")
		return nil, &res
	}
	if err := schema.Validate(schema.EntityList, items); err != nil {
		res := suite.Fail("%v", err)
		return nil, &res
	}
	return items, nil
}

func (r Resource) checkListed(ctx context.Context, env *suite.Env) suite.CheckResult {
	id, fail := requireFixture(env, r.Kind)
	if fail != nil {
		return *fail
	}
	items, fail := r.list(ctx, env)
	if fail != nil {
		return *fail
	}
	if _, found := findByID(items, id); !found {
		return suite.Fail("%s %s missing from %d listed item(s)", r.Kind, id, len(items))
	}
	return suite.Pass("%s %s listed among %d item(s)", r.Kind, id, len(items))
}

func (r Resource) checkUpdate(ctx context.Context, env *suite.Env) suite.CheckResult {
	id, fail := requireFixture(env, r.Kind)
	if fail != nil {
		return *fail
	}
	out := env.Client.Put(ctx, r.Path()+"/"+id, env.State.Token, r.Update)
	if !out.OK {
		return suite.Fail("update failed: %s", out)
	}
	return suite.Pass("updated %s", describeFields(r.Update))
}

func (r Resource) checkReadBack(ctx context.Context, env *suite.Env) suite.CheckResult {
	id, fail := requireFixture(env, r.Kind)
	if fail != nil {
		return *fail
	}
	items, fail := r.list(ctx, env)
	if fail != nil {
		return *fail
	}
	item, found := findByID(items, id)
	if !found {
		return suite.Fail("%s %s missing after update", r.Kind, id)
	}
	for _, field := range sortedKeys(r.Update) {
		want := fmt.Sprint(r.Update[field])
		if got := fmt.Sprint(item[field]); got != want {
			return suite.Fail("%s is %q after update, expected %q", field, got, want)
		}
	}
	return suite.Pass("read back %s", describeFields(r.Update))
}

func (r Resource) checkDelete(ctx context.Context, env *suite.Env) suite.CheckResult {
	id, fail := requireFixture(env, r.Kind)
	if fail != nil {
		return *fail
	}
	out := env.Client.Delete(ctx, r.Path()+"/"+id, env.State.Token)
	if !out.OK {
		return suite.Fail("delete failed: %s", out)
	}
	if out.Body != nil {
		if err := schema.Validate(schema.Message, out.Body); err != nil {
			return suite.Warn("deleted %s %s but %v", r.Kind, id, err)
		}
	}
	return suite.Pass("deleted %s %s", r.Kind, id)
}

func (r Resource) checkGone(ctx context.Context, env *suite.Env) suite.CheckResult {
	id, fail := requireFixture(env, r.Kind)
	if fail != nil {
		return *fail
	}
	items, fail := r.list(ctx, env)
	if fail != nil {
		return *fail
	}
	if _, found := findByID(items, id); found {
		return suite.Fail("%s %s still listed after delete", r.Kind, id)
	}
	return suite.Pass("%s %s no longer listed", r.Kind, id)
}

func describeFields(m map[string]any) string {
	s := ""
	for i, k := range sortedKeys(m) {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%v", k, m[k])
	}
	return s
}

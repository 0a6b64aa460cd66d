package web

import (
	"html/template"
	"time"

	"github.com/amonks/swarmboard/ledger"
	"github.com/amonks/swarmboard/phase"
)

func newTemplates() *template.Template {
	funcs := template.FuncMap{
		"formatTime":  formatTime,
		"statusClass": statusClass,
		"taskRow":     func(terminal int, task ledger.Task) taskRow { return taskRow{Terminal: terminal, Task: task} },
	}
	return template.Must(template.New("page").Funcs(funcs).Parse(pageTemplate))
}

type taskRow struct {
	Terminal int
	Task     ledger.Task
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.Format("2006-01-02 15:04:05")
}

func statusClass(value phase.Status) string {
	switch value {
	case phase.StatusCompleted:
		return "completed"
	case phase.StatusInProgress:
		return "in-progress"
	case phase.StatusWaiting:
		return "waiting"
	default:
		return "not-started"
	}
}

const pageTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Swarm Board{{if .Snapshot}} - {{.Snapshot.ProjectName}}{{end}}</title>
  <style>
    :root {
      color-scheme: light;
    }
    body {
      margin: 0;
      font-family: "Charter", "Georgia", serif;
      color: #2b2520;
      background: radial-gradient(circle at top left, #f4efe3 0%, #fcfaf6 55%, #f6f2e8 100%);
    }
    header {
      padding: 16px 24px;
      border-bottom: 1px solid #d7cdbd;
      background: rgba(255, 255, 255, 0.72);
      backdrop-filter: blur(6px);
      display: flex;
      justify-content: space-between;
      align-items: center;
      gap: 16px;
    }
    header h1 {
      margin: 0 0 4px 0;
      font-size: 20px;
      letter-spacing: 0.02em;
    }
    .meta {
      color: #72685f;
      font-size: 13px;
    }
    .board {
      display: grid;
      grid-template-columns: repeat(5, minmax(180px, 1fr));
      gap: 14px;
      padding: 18px 24px;
    }
    .pane {
      background: #ffffff;
      border: 1px solid #d7cdbd;
      border-radius: 14px;
      box-shadow: 0 8px 24px rgba(60, 45, 30, 0.08);
      padding: 14px;
    }
    .pane h2 {
      margin: 0 0 6px 0;
      font-size: 16px;
    }
    .badge {
      display: inline-block;
      padding: 2px 8px;
      border-radius: 999px;
      font-size: 11px;
      border: 1px solid #cbbfae;
    }
    .badge.completed { background: #dcecd6; }
    .badge.in-progress { background: #f5e6c8; }
    .badge.waiting { background: #e3e0f2; }
    .badge.not-started { background: #f0ebe2; }
    .bar {
      height: 8px;
      border-radius: 999px;
      background: #efe6d7;
      overflow: hidden;
      margin: 8px 0;
    }
    .bar span {
      display: block;
      height: 100%;
      background: #8a9a5b;
    }
    .section-title {
      font-size: 12px;
      text-transform: uppercase;
      color: #72685f;
      margin: 12px 0 4px;
    }
    ul.tasks {
      list-style: none;
      padding: 0;
      margin: 0;
      display: flex;
      flex-direction: column;
      gap: 4px;
    }
    ul.tasks form {
      display: flex;
      gap: 6px;
      align-items: baseline;
      margin: 0;
    }
    ul.tasks button {
      padding: 0 6px;
      font-size: 12px;
    }
    .done {
      color: #8b8178;
      text-decoration: line-through;
    }
    .tools {
      display: flex;
      gap: 14px;
      padding: 0 24px 28px;
    }
    .tools .pane {
      flex: 1;
    }
    textarea {
      width: 100%;
      min-height: 100px;
      padding: 8px 10px;
      border-radius: 8px;
      border: 1px solid #cbbfae;
      font-family: inherit;
      font-size: 14px;
      background: #fffdf9;
      box-sizing: border-box;
      resize: vertical;
    }
    select {
      padding: 6px 8px;
      border-radius: 8px;
      border: 1px solid #cbbfae;
      font-family: inherit;
      background: #fffdf9;
    }
    button {
      padding: 6px 12px;
      border-radius: 8px;
      border: 1px solid #bfb3a2;
      background: #efe6d7;
      font-family: inherit;
      cursor: pointer;
    }
    .error {
      margin: 12px 24px 0;
      padding: 10px 12px;
      border-radius: 10px;
      background: #f4d7d2;
      border: 1px solid #d7a7a1;
    }
    .notice {
      margin: 12px 24px 0;
      padding: 10px 12px;
      border-radius: 10px;
      background: #dcecd6;
      border: 1px solid #b6cfaa;
    }
  </style>
</head>
<body>
  <header>
    <div>
      {{if .Snapshot}}
      <h1>{{.Snapshot.ProjectName}}</h1>
      <div class="meta">
        Phase {{.Snapshot.Phase.Number}}{{if .Snapshot.Phase.Name}}: {{.Snapshot.Phase.Name}}{{end}}
        <span class="badge {{statusClass .Snapshot.Phase.Status}}">{{.Snapshot.Phase.Status}}</span>
        &middot; {{.Snapshot.OverallProgress}}% overall &middot; updated {{formatTime .Snapshot.Timestamp}}
      </div>
      <div class="bar"><span style="width: {{.Snapshot.OverallProgress}}%"></span></div>
      {{else}}
      <h1>Swarm Board</h1>
      <div class="meta">No project loaded.</div>
      {{end}}
    </div>
    <form method="post" action="/web/board/project">
      <select name="name">
        {{range .Projects}}
        <option value="{{.Name}}"{{if eq .Name $.Active}} selected{{end}}>{{.Name}} ({{.Status}})</option>
        {{end}}
      </select>
      <button type="submit">Switch</button>
    </form>
  </header>
  {{if .FetchError}}<div class="error">{{.FetchError}}</div>{{end}}
  {{if .Error}}<div class="error">{{.Error}}</div>{{end}}
  {{if .Notice}}<div class="notice">{{.Notice}}</div>{{end}}
  <main class="board">
    {{range .Columns}}
    <section class="pane" data-terminal="{{.Terminal}}">
      <h2>Terminal {{.Terminal}}</h2>
      {{with .Entry}}
      <span class="badge {{statusClass .Status}}">{{.Status}}</span>
      <div class="meta">{{.Task}}</div>
      <div class="bar"><span style="width: {{.Progress}}%"></span></div>
      <div class="meta">{{.Progress}}%</div>
      {{if .Error}}<div class="meta">{{.Error}}</div>{{end}}
      {{$terminal := .Terminal}}
      <div class="section-title">In progress</div>
      <ul class="tasks">
        {{range .Tasks.InProgress}}{{template "task" (taskRow $terminal .)}}{{end}}
      </ul>
      <div class="section-title">Pending</div>
      <ul class="tasks">
        {{range .Tasks.Pending}}{{template "task" (taskRow $terminal .)}}{{end}}
      </ul>
      <div class="section-title">Completed</div>
      <ul class="tasks">
        {{range .Tasks.Completed}}{{template "task" (taskRow $terminal .)}}{{end}}
      </ul>
      {{else}}
      <div class="meta">Idle</div>
      {{end}}
    </section>
    {{end}}
  </main>
  <div class="tools">
    <section class="pane">
      <h2>Add work</h2>
      <form method="post" action="/web/board/merge">
        <textarea name="request" placeholder="Describe new work, or list tasks one per line">{{.MergeRequest}}</textarea>
        <label><input type="checkbox" name="dry_run" value="true"> Preview only</label>
        <button type="submit">Merge</button>
      </form>
    </section>
    {{with .Merge}}
    <section class="pane merge-result">
      <h2>{{if .Applied}}Merged{{else}}Preview{{end}}</h2>
      <div class="section-title">New tasks</div>
      <ul class="tasks">
        {{range .Placements}}<li>Terminal {{.Terminal}}: {{.Task}}</li>{{else}}<li class="meta">None</li>{{end}}
      </ul>
      <div class="section-title">Duplicates avoided</div>
      <ul class="tasks">
        {{range .Duplicates}}<li>{{.Task}} <span class="meta">matches "{{.Existing}}"</span></li>{{else}}<li class="meta">None</li>{{end}}
      </ul>
    </section>
    {{end}}
  </div>
  <script>
    (async () => {
      try {
        const response = await fetch("/api/subscribe");
        const reader = response.body.getReader();
        const decoder = new TextDecoder();
        let buffered = "";
        let seen = 0;
        for (;;) {
          const { value, done } = await reader.read();
          if (done) return;
          buffered += decoder.decode(value, { stream: true });
          const lines = buffered.split("\n");
          buffered = lines.pop();
          for (const line of lines) {
            if (line.trim() === "") continue;
            seen += 1;
            if (seen > 1) {
              window.location.reload();
              return;
            }
          }
        }
      } catch (err) {
        console.error(err);
      }
    })();
  </script>
</body>
</html>
{{define "task"}}
<li>
  <form method="post" action="/web/board/toggle">
    <input type="hidden" name="terminal" value="{{.Terminal}}">
    <input type="hidden" name="task" value="{{.Task.Text}}">
    <input type="hidden" name="completed" value="{{if .Task.Completed}}false{{else}}true{{end}}">
    <button type="submit" title="{{.Task.ID}}">{{if .Task.Completed}}&#x2713;{{else}}&#x25CB;{{end}}</button>
    <span{{if .Task.Completed}} class="done"{{end}}>{{.Task.Text}}</span>
  </form>
</li>
{{end}}`

// adminpage.go — GET /admin: страница администратора.
// Страница статическая; данные загружаются скриптом через /admin/api/*
// с cookie ld_admin. Язык определяет i18n.Middleware.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"

	"github.com/bigkaa/legaldesk/internal/i18n"
)

// pageLabelKeys — ключи переводов, используемые скриптом страницы.
var pageLabelKeys = []string{
	"admin.title", "admin.search", "admin.status", "admin.all", "admin.reply",
	"admin.login", "admin.logout", "admin.username", "admin.password",
	"admin.created", "admin.name", "admin.phone", "admin.message", "admin.documents",
	"admin.send", "admin.cancel",
	"admin.status_new", "admin.status_in_progress", "admin.status_done",
	"admin.status_updated", "admin.reply_sent", "admin.request_failed",
}

// AdminPageData — данные страницы администратора.
type AdminPageData struct {
	Lang   string
	Labels map[string]string
}

// GetAdminPage — GET /admin.
func (h *APIHandler) GetAdminPage(w http.ResponseWriter, r *http.Request) {
	lang := i18n.LangFromContext(r.Context())
	data := AdminPageData{Lang: lang, Labels: make(map[string]string, len(pageLabelKeys))}
	for _, key := range pageLabelKeys {
		data.Labels[key] = h.texts.Translate(lang, key)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := AdminPage(data).Render(r.Context(), w); err != nil {
		h.logger.Error("Ошибка рендеринга страницы администратора",
			slog.String("error", err.Error()),
		)
		http.Error(w, "Ошибка рендеринга страницы", http.StatusInternalServerError)
	}
}

// AdminPage — компонент страницы администратора.
func AdminPage(data AdminPageData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		labels, err := json.Marshal(data.Labels)
		if err != nil {
			return fmt.Errorf("сериализация переводов: %w", err)
		}
		t := func(key string) string { return templ.EscapeString(data.Labels[key]) }

		_, err = fmt.Fprintf(w, adminPageHTML,
			templ.EscapeString(data.Lang),
			t("admin.title"),
			t("admin.title"),
			t("admin.username"), t("admin.password"), t("admin.login"),
			t("admin.search"),
			t("admin.all"), t("admin.status_new"), t("admin.status_in_progress"), t("admin.status_done"),
			t("admin.logout"),
			t("admin.created"), t("admin.name"), t("admin.phone"), t("admin.message"),
			t("admin.status"), t("admin.documents"),
			t("admin.reply"), t("admin.send"), t("admin.cancel"),
			labels,
		)
		return err
	})
}

// adminPageHTML — разметка и скрипт страницы. Подстановки экранированы,
// переводы для скрипта передаются JSON-объектом (json.Marshal экранирует <, >, &).
const adminPageHTML = `<!DOCTYPE html>
<html lang="%s">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<style>
body{font-family:system-ui,sans-serif;margin:1.5rem;color:#222}
table{border-collapse:collapse;width:100%%}
th,td{border:1px solid #ddd;padding:.4rem;vertical-align:top;text-align:left}
th{background:#f5f5f5}
.hidden{display:none}
.toolbar{display:flex;gap:.5rem;margin-bottom:1rem;flex-wrap:wrap}
.toast{position:fixed;right:1rem;bottom:1rem;background:#333;color:#fff;padding:.6rem 1rem;border-radius:4px}
dialog{min-width:320px}
textarea{width:100%%;min-height:8rem}
</style>
</head>
<body>
<h1>%s</h1>

<form id="login-form" class="hidden">
  <input name="username" placeholder="%s" required>
  <input name="password" type="password" placeholder="%s" required>
  <button type="submit">%s</button>
</form>

<section id="requests" class="hidden">
  <div class="toolbar">
    <input id="search" type="search" placeholder="%s">
    <select id="status-filter">
      <option value="">%s</option>
      <option value="new">%s</option>
      <option value="in_progress">%s</option>
      <option value="done">%s</option>
    </select>
    <button id="logout" type="button">%s</button>
  </div>
  <table>
    <thead><tr><th>#</th><th>%s</th><th>%s</th><th>%s</th><th>%s</th><th>%s</th><th>%s</th><th></th></tr></thead>
    <tbody id="requests-table"></tbody>
  </table>
</section>

<dialog id="reply-dialog">
  <form id="reply-form" method="dialog">
    <h3>%s</h3>
    <input type="hidden" name="user_id">
    <textarea name="message" maxlength="4096" required></textarea>
    <button type="submit" value="send">%s</button>
    <button type="button" id="reply-cancel">%s</button>
  </form>
</dialog>

<script>
const L = %s;
const statuses = ["new", "in_progress", "done"];
let filterSearch = "", filterStatus = "";

function esc(s) {
  const d = document.createElement("div");
  d.textContent = s == null ? "" : String(s);
  return d.innerHTML;
}

function toast(msg) {
  const el = document.createElement("div");
  el.className = "toast";
  el.textContent = msg;
  document.body.appendChild(el);
  setTimeout(() => el.remove(), 3000);
}

async function api(method, url, body) {
  const opts = {method, credentials: "same-origin", headers: {}};
  if (body !== undefined) {
    opts.headers["Content-Type"] = "application/json";
    opts.body = JSON.stringify(body);
  }
  const res = await fetch(url, opts);
  if (res.status === 401) {
    showLogin();
    throw new Error("unauthorized");
  }
  const data = await res.json().catch(() => ({}));
  if (!res.ok) {
    throw new Error((data.error && data.error.message) || L["admin.request_failed"]);
  }
  return data;
}

function showLogin() {
  document.getElementById("login-form").classList.remove("hidden");
  document.getElementById("requests").classList.add("hidden");
}

function showRequests() {
  document.getElementById("login-form").classList.add("hidden");
  document.getElementById("requests").classList.remove("hidden");
}

async function fetchRequests() {
  const q = new URLSearchParams({search: filterSearch, status: filterStatus});
  const data = await api("GET", "/admin/api/requests?" + q.toString());
  showRequests();
  renderRequests(data.requests || []);
}

function renderRequests(requests) {
  const tbody = document.getElementById("requests-table");
  tbody.innerHTML = "";
  for (const req of requests) {
    const row = document.createElement("tr");
    const options = statuses.map(s =>
      '<option value="' + s + '"' + (req.status === s ? " selected" : "") + ">" + esc(L["admin.status_" + s]) + "</option>").join("");
    const docs = (req.documents || []).map(d =>
      '<a href="/admin/download/' + encodeURIComponent(d.file_id) + '">' + esc(d.file_name) + "</a>").join("<br>");
    row.innerHTML =
      "<td>" + req.id + "</td>" +
      "<td>" + esc(new Date(req.created_at).toLocaleString()) + "</td>" +
      "<td>" + esc(req.name) + "</td>" +
      "<td>" + esc(req.phone) + "</td>" +
      "<td>" + esc(req.message) + "</td>" +
      '<td><select data-id="' + req.id + '">' + options + "</select></td>" +
      "<td>" + docs + "</td>" +
      '<td><button type="button" data-user="' + req.user_id + '">' + esc(L["admin.reply"]) + "</button></td>";
    tbody.appendChild(row);
  }
}

document.getElementById("requests-table").addEventListener("change", async e => {
  const id = Number(e.target.dataset.id);
  if (!id) return;
  try {
    await api("POST", "/admin/api/status", {request_id: id, status: e.target.value});
    toast(L["admin.status_updated"]);
  } catch (err) {
    toast(err.message);
  }
  fetchRequests().catch(() => {});
});

document.getElementById("requests-table").addEventListener("click", e => {
  const userId = e.target.dataset.user;
  if (!userId) return;
  const form = document.getElementById("reply-form");
  form.user_id.value = userId;
  document.getElementById("reply-dialog").showModal();
});

document.getElementById("reply-cancel").addEventListener("click", () => {
  document.getElementById("reply-form").reset();
  document.getElementById("reply-dialog").close();
});

document.getElementById("reply-form").addEventListener("submit", async e => {
  e.preventDefault();
  const form = e.target;
  try {
    await api("POST", "/admin/api/reply", {user_id: Number(form.user_id.value), message: form.message.value});
    form.reset();
    document.getElementById("reply-dialog").close();
    toast(L["admin.reply_sent"]);
  } catch (err) {
    toast(err.message);
  }
});

document.getElementById("login-form").addEventListener("submit", async e => {
  e.preventDefault();
  const form = e.target;
  try {
    await api("POST", "/admin/api/login", {username: form.username.value, password: form.password.value});
    form.reset();
    await fetchRequests();
  } catch (err) {
    toast(err.message);
  }
});

document.getElementById("logout").addEventListener("click", async () => {
  await api("POST", "/admin/api/logout").catch(() => {});
  showLogin();
});

document.getElementById("search").addEventListener("input", e => {
  filterSearch = e.target.value;
  fetchRequests().catch(() => {});
});

document.getElementById("status-filter").addEventListener("change", e => {
  filterStatus = e.target.value;
  fetchRequests().catch(() => {});
});

fetchRequests().catch(() => {});
setInterval(() => {
  if (!document.getElementById("requests").classList.contains("hidden")) {
    fetchRequests().catch(() => {});
  }
}, 5000);
</script>
</body>
</html>
`

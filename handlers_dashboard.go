package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func serveDashboard(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, dashboardHTML)
}

const dashboardHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Network Reports</title>
  <style>
    :root {
      --bg: #f7f4ef;
      --ink: #1b1b1b;
      --muted: #6b6b6b;
      --card: #ffffff;
      --accent: #0c3b2e;
      --accent-2: #c8a26b;
      --border: #e1d9ce;
      --warn: #9b2c2c;
    }
    * { box-sizing: border-box; }
    body {
      margin: 0;
      font-family: "Segoe UI", "Helvetica Neue", Arial, sans-serif;
      color: var(--ink);
      background: linear-gradient(180deg, #f7f4ef 0%, #f1ebe3 60%, #f4f0ea 100%);
    }
    header {
      padding: 24px 32px;
      border-bottom: 1px solid var(--border);
      background: #fffaf3;
      position: sticky;
      top: 0;
      z-index: 10;
    }
    h1 { margin: 0; font-size: 22px; letter-spacing: 0.5px; }
    .filters {
      margin-top: 12px;
      display: flex;
      flex-wrap: wrap;
      gap: 12px;
      align-items: center;
      font-size: 13px;
    }
    .filters input, .filters select, .filters textarea {
      padding: 6px 8px;
      border: 1px solid var(--border);
      border-radius: 6px;
      background: #fff;
    }
    .filters button {
      padding: 7px 12px;
      border: none;
      border-radius: 6px;
      background: var(--accent);
      color: #fff;
      cursor: pointer;
    }
    .tabs, .ranges {
      margin-top: 12px;
      display: flex;
      gap: 8px;
      flex-wrap: wrap;
    }
    .tab-btn, .range-btn {
      padding: 6px 12px;
      border-radius: 999px;
      border: 1px solid var(--border);
      background: #fff;
      cursor: pointer;
      font-size: 12px;
    }
    .tab-btn.active, .range-btn.active {
      background: var(--accent);
      border-color: var(--accent);
      color: #fff;
    }
    .tab-content { display: none; }
    .tab-content.active { display: block; }
    .layout {
      padding: 24px 32px 40px;
      display: grid;
      gap: 16px;
    }
    .grid {
      display: grid;
      gap: 16px;
      grid-template-columns: repeat(auto-fit, minmax(420px, 1fr));
    }
    .panel {
      background: var(--card);
      border: 1px solid var(--border);
      border-radius: 10px;
      padding: 12px 14px;
    }
    .panel h3 { margin: 0 0 8px 0; font-size: 14px; color: var(--muted); }
    .panel .chart { height: 260px; }
    .panel .placeholder {
      height: 260px;
      display: none;
      align-items: center;
      justify-content: center;
      color: var(--muted);
      font-size: 13px;
    }
    .panel.flat .chart { display: none; }
    .panel.flat .placeholder { display: flex; }
    .panel .links { font-size: 11px; margin-top: 6px; }
    .panel .links a { color: var(--accent); margin-right: 10px; }
    table {
      width: 100%;
      border-collapse: collapse;
      font-size: 12px;
    }
    thead th {
      text-align: left;
      padding: 8px 6px;
      border-bottom: 1px solid var(--border);
      color: var(--muted);
    }
    tbody td {
      padding: 8px 6px;
      border-bottom: 1px dashed var(--border);
    }
    .muted { color: var(--muted); }
    .banner {
      display: none;
      margin: 12px 32px 0;
      padding: 8px 12px;
      border-radius: 6px;
      font-size: 12px;
      background: #fbeaea;
      color: var(--warn);
    }
    .banner.ok { background: #e8f3ee; color: var(--accent); }
    @media (max-width: 720px) {
      header { padding: 18px; }
      .layout { padding: 18px; }
    }
  </style>
</head>
<body>
  <header>
    <h1>Network Reports</h1>
    <div class="filters">
      <label>Level
        <select id="levelInput">
          <option value="global">Global</option>
          <option value="network" selected>Network</option>
          <option value="tower">Tower</option>
        </select>
      </label>
      <label>Level ID <input type="number" id="levelIdInput" value="1" style="width:90px"></label>
      <label>Start <input type="datetime-local" id="startInput"></label>
      <label>End <input type="datetime-local" id="endInput"></label>
      <label>Unit <input type="text" id="unitInput" placeholder="USD" style="width:70px"></label>
      <button id="refreshBtn">Refresh</button>
      <span class="muted" id="rangeHint"></span>
    </div>
    <div class="ranges" id="rangeButtons"></div>
    <div class="tabs">
      <button class="tab-btn active" data-tab="usage">Calls &amp; SMS</button>
      <button class="tab-btn" data-tab="billing">Billing</button>
      <button class="tab-btn" data-tab="subscribers">Subscribers</button>
      <button class="tab-btn" data-tab="health">Health</button>
      <button class="tab-btn" data-tab="broadcast">Broadcast</button>
    </div>
  </header>
  <div class="banner" id="banner"></div>

  <section id="tab-usage" class="tab-content active">
    <div class="layout grid">
      <div class="panel report" data-chart-id="sms-chart" data-stat-types="sms" data-title="SMS"></div>
      <div class="panel report" data-chart-id="call-chart" data-stat-types="call" data-title="Calls"></div>
      <div class="panel report" data-chart-id="call-sms-chart" data-stat-types="sms,call" data-report-view="summary" data-chart-type="pie-chart" data-title="Calls vs SMS"></div>
      <div class="panel report" data-chart-id="data-chart" data-stat-types="total_data,uploaded_data,downloaded_data" data-title="Data (MB)"></div>
    </div>
  </section>

  <section id="tab-billing" class="tab-content">
    <div class="layout grid">
      <div class="panel report" data-chart-id="call-billing-chart" data-stat-types="call" data-aggregation="transaction_sum" data-report-view="summary" data-chart-type="bar-chart" data-title="Call billing"></div>
      <div class="panel report" data-chart-id="sms-billing-chart" data-stat-types="sms" data-aggregation="transaction_sum" data-report-view="summary" data-chart-type="bar-chart" data-title="SMS billing"></div>
      <div class="panel report" data-chart-id="load-transfer-chart" data-stat-types="transfer" data-aggregation="transaction_sum" data-report-view="summary" data-chart-type="bar-chart" data-title="Load transfers"></div>
      <div class="panel report" data-chart-id="add-money-chart" data-stat-types="add-money" data-aggregation="transaction_sum" data-report-view="summary" data-chart-type="bar-chart" data-title="Add money"></div>
    </div>
  </section>

  <section id="tab-subscribers" class="tab-content">
    <div class="layout grid">
      <div class="panel report" data-stat-types="provisioned,deprovisioned" data-title="Provisioning"></div>
      <div class="panel report" data-stat-types="zero_balance_subscriber" data-title="Zero balance"></div>
      <div class="panel report" data-stat-types="expired,first_expired,blocked" data-report-view="summary" data-chart-type="pie-chart" data-title="Inactive subscribers"></div>
    </div>
  </section>

  <section id="tab-health" class="tab-content">
    <div class="layout grid">
      <div class="panel report" data-stat-types="bts up,bts down" data-title="Tower up/down"></div>
      <div class="panel report" data-stat-types="cpu_percent,memory_percent,disk_percent" data-title="Tower resources"></div>
      <div class="panel report" data-stat-types="noise_rssi_db" data-title="Noise (dB)"></div>
    </div>
  </section>

  <section id="tab-broadcast" class="tab-content">
    <div class="layout">
      <div class="panel">
        <h3>Broadcast SMS</h3>
        <form id="broadcastForm" class="filters">
          <label>Send to
            <select name="sendto">
              <option value="network">Whole network</option>
              <option value="tower">Tower</option>
              <option value="imsi">Subscribers</option>
            </select>
          </label>
          <label>Tower ID <input type="number" name="tower_id" style="width:90px"></label>
          <label>IMSI <input type="text" name="imsi" placeholder="IMSI001,IMSI002"></label>
          <label>Message <input type="text" name="message" style="width:320px"></label>
          <button type="submit">Send</button>
        </form>
      </div>
      <div class="panel">
        <h3>Recent broadcasts</h3>
        <table>
          <thead><tr><th>Sent</th><th>To</th><th>Tower</th><th>Message</th></tr></thead>
          <tbody id="historyTable"></tbody>
        </table>
      </div>
    </div>
  </section>

  <script src="https://cdn.jsdelivr.net/npm/echarts@5/dist/echarts.min.js"></script>
  <script>
    const PLACEHOLDER = 'No data available for this range.';
    const els = {
      level: document.getElementById('levelInput'),
      levelId: document.getElementById('levelIdInput'),
      start: document.getElementById('startInput'),
      end: document.getElementById('endInput'),
      unit: document.getElementById('unitInput'),
      refresh: document.getElementById('refreshBtn'),
      hint: document.getElementById('rangeHint'),
      ranges: document.getElementById('rangeButtons'),
      banner: document.getElementById('banner'),
      tabButtons: document.querySelectorAll('.tab-btn'),
      broadcastForm: document.getElementById('broadcastForm'),
      historyTable: document.getElementById('historyTable')
    };
    const state = { button: 'week', start: null, end: null, seq: 0 };
    const widgets = new Map();

    function escapeHTML(v) {
      return String(v).replace(/[&<>"']/g, ch => ({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;',"'":'&#39;'}[ch]));
    }

    function showBanner(text, ok) {
      els.banner.textContent = text;
      els.banner.className = ok ? 'banner ok' : 'banner';
      els.banner.style.display = 'block';
      setTimeout(() => { els.banner.style.display = 'none'; }, 5000);
    }

    function toLocalInputValue(date) {
      const pad = n => String(n).padStart(2, '0');
      return date.getFullYear() + '-' + pad(date.getMonth() + 1) + '-' + pad(date.getDate()) +
        'T' + pad(date.getHours()) + ':' + pad(date.getMinutes());
    }

    function fromLocalInput(value) {
      if (!value) return null;
      const d = new Date(value);
      return isNaN(d.getTime()) ? null : Math.floor(d.getTime() / 1000);
    }

    function widgetParams(el) {
      const p = {
        'stat-types': el.dataset.statTypes,
        'level-id': els.levelId.value || '-1',
        'chart-id': el.dataset.chartId || '',
        'chart-type': el.dataset.chartType || 'line-chart',
        'aggregation': el.dataset.aggregation || 'count',
        'report-view': el.dataset.reportView || 'list',
        'title': el.dataset.title || ''
      };
      if (els.unit.value.trim()) p.unit = els.unit.value.trim();
      if (state.button) {
        p.button = state.button;
      } else {
        p['start-time-epoch'] = String(state.start);
        p['end-time-epoch'] = String(state.end);
      }
      return p;
    }

    function setupWidget(el) {
      el.innerHTML = '<h3>' + escapeHTML(el.dataset.title) + '</h3>' +
        '<div class="chart"></div><div class="placeholder">' + PLACEHOLDER + '</div>' +
        '<table><thead></thead><tbody></tbody></table>' +
        '<div class="links"><a class="csv" href="#">CSV</a><a class="png" href="#" target="_blank">PNG</a><a class="page" href="#" target="_blank">Chart</a></div>';
      const w = { el, id: 'w' + widgets.size, chart: echarts.init(el.querySelector('.chart')), seq: 0 };
      widgets.set(el, w);
      return w;
    }

    function renderWidget(w, data) {
      w.el.classList.toggle('flat', data.flat);
      w.el.querySelector('thead').innerHTML = '<tr>' + data.columns.map(c => '<th>' + escapeHTML(c.title) + '</th>').join('') + '</tr>';
      w.el.querySelector('tbody').innerHTML = data.table.map(r => '<tr><td>' + escapeHTML(r[0]) + '</td><td>' + escapeHTML(r[1]) + '</td></tr>').join('');
      els.hint.textContent = new Date(data.range.start * 1000).toLocaleString() + ' ~ ' + new Date(data.range.end * 1000).toLocaleString() + ' (' + data.granularity + ')';
      if (data.flat) return;

      const type = data.chart_type;
      const hasPoints = data.series.some(s => s.values && s.values.length);
      let option;
      if (type === 'pie-chart') {
        option = {
          tooltip: { trigger: 'item' },
          series: [{ type: 'pie', radius: '65%', data: data.series.map(s => ({ name: s.key, value: s.total })) }]
        };
      } else if (type === 'bar-chart' || !hasPoints) {
        option = {
          tooltip: { trigger: 'axis' },
          xAxis: { type: 'category', data: data.series.map(s => s.key) },
          yAxis: { type: 'value' },
          series: [{ type: 'bar', data: data.series.map(s => s.total), itemStyle: { color: '#0c3b2e' } }]
        };
      } else {
        option = {
          tooltip: { trigger: 'axis' },
          legend: { top: 0 },
          xAxis: { type: 'time' },
          yAxis: { type: 'value' },
          series: data.series.map(s => ({ name: s.key, type: 'line', showSymbol: false, data: (s.values || []).map(p => [p[0], p[1]]) }))
        };
      }
      w.chart.setOption(option, true);
    }

    function updateLinks(w, params) {
      const q = new URLSearchParams(params);
      q.set('level', els.level.value);
      q.set('level_id', els.levelId.value);
      q.set('report-type', (w.el.dataset.chartId || 'report').replace(/-chart$/, '-report'));
      w.el.querySelector('.csv').href = '/report/downloadcsv?' + q.toString();
      w.el.querySelector('.png').href = '/report/png?' + q.toString();
      w.el.querySelector('.page').href = '/report/chart?' + q.toString();
    }

    // live feed: every widget is its own stream; the server answers only the
    // newest seq of each stream
    let socket = null;
    const pending = new Map();

    function connect() {
      const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
      socket = new WebSocket(proto + location.host + '/ws/reports');
      socket.onmessage = ev => {
        const msg = JSON.parse(ev.data);
        const w = pending.get(msg.seq);
        pending.delete(msg.seq);
        if (!w || w.seq !== msg.seq) return;
        if (msg.error) { showBanner(msg.error.message, false); return; }
        renderWidget(w, msg.report);
      };
      socket.onclose = () => { socket = null; setTimeout(connect, 2000); };
    }

    async function loadWidget(w) {
      const params = widgetParams(w.el);
      updateLinks(w, params);
      const seq = ++state.seq;
      w.seq = seq;
      if (socket && socket.readyState === WebSocket.OPEN) {
        pending.set(seq, w);
        socket.send(JSON.stringify({ stream: w.id, seq, level: els.level.value, params }));
        return;
      }
      try {
        const res = await fetch('/api/v1/reports/' + els.level.value + '?' + new URLSearchParams(params).toString());
        const data = await res.json();
        if (w.seq !== seq) return;
        if (!res.ok) { showBanner(data.message || ('Request failed: ' + res.status), false); return; }
        renderWidget(w, data);
      } catch (err) {
        showBanner(err.message, false);
      }
    }

    function activeWidgets() {
      const tab = document.querySelector('.tab-content.active');
      return Array.from(tab.querySelectorAll('.report')).map(el => widgets.get(el) || setupWidget(el));
    }

    function refresh() {
      activeWidgets().forEach(loadWidget);
      if (document.getElementById('tab-broadcast').classList.contains('active')) loadHistory();
    }

    function renderRangeButtons() {
      ['hour', 'day', 'week', 'month', 'year'].forEach(name => {
        const b = document.createElement('button');
        b.className = 'range-btn' + (name === state.button ? ' active' : '');
        b.textContent = name;
        b.onclick = () => {
          state.button = name;
          document.querySelectorAll('.range-btn').forEach(x => x.classList.toggle('active', x === b));
          const now = new Date();
          const secs = { hour: 3600, day: 86400, week: 604800, month: 2592000, year: 31536000 }[name];
          els.start.value = toLocalInputValue(new Date(now.getTime() - secs * 1000));
          els.end.value = toLocalInputValue(now);
          refresh();
        };
        els.ranges.appendChild(b);
      });
    }

    function onPicker() {
      const start = fromLocalInput(els.start.value);
      const end = fromLocalInput(els.end.value);
      if (start === null || end === null || start >= end || end > Date.now() / 1000) return;
      state.button = null;
      state.start = start;
      state.end = end;
      document.querySelectorAll('.range-btn').forEach(x => x.classList.remove('active'));
      refresh();
    }

    async function loadHistory() {
      const res = await fetch('/dashboard/broadcast/history?network_id=' + encodeURIComponent(els.levelId.value));
      if (!res.ok) return;
      const data = await res.json();
      els.historyTable.innerHTML = data.data.map(r =>
        '<tr><td>' + new Date(r.CreatedAt).toLocaleString() + '</td><td>' + escapeHTML(r.SendTo) + '</td><td>' +
        (r.TowerID || '') + '</td><td>' + escapeHTML(r.Text) + '</td></tr>').join('');
    }

    els.broadcastForm.addEventListener('submit', async ev => {
      ev.preventDefault();
      const form = new URLSearchParams(new FormData(els.broadcastForm));
      form.set('network_id', els.levelId.value);
      const res = await fetch('/dashboard/broadcast', { method: 'POST', body: form });
      const data = await res.json();
      if (data.status === 'ok') {
        showBanner(data.messages.join(' '), true);
        loadHistory();
      } else {
        showBanner((data.messages || [data.message]).join(' '), false);
      }
    });

    els.tabButtons.forEach(btn => btn.addEventListener('click', () => {
      els.tabButtons.forEach(b => b.classList.toggle('active', b === btn));
      document.querySelectorAll('.tab-content').forEach(s => s.classList.toggle('active', s.id === 'tab-' + btn.dataset.tab));
      refresh();
    }));
    els.refresh.addEventListener('click', refresh);
    els.level.addEventListener('change', refresh);
    els.start.addEventListener('change', onPicker);
    els.end.addEventListener('change', onPicker);
    window.addEventListener('resize', () => widgets.forEach(w => w.chart.resize()));

    renderRangeButtons();
    els.end.value = toLocalInputValue(new Date());
    els.start.value = toLocalInputValue(new Date(Date.now() - 604800 * 1000));
    connect();
    refresh();
  </script>
</body>
</html>
`

package dashboard

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>TrendGoat</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: 'Inter', -apple-system, system-ui, sans-serif; background: #0f172a; color: #e2e8f0; min-height: 100vh; }
        .header { background: linear-gradient(135deg, #1e293b, #334155); padding: 1.5rem 2rem; border-bottom: 1px solid #475569; display: flex; justify-content: space-between; align-items: center; }
        .header h1 { font-size: 1.5rem; color: #38bdf8; }
        .status { padding: 0.5rem 1rem; border-radius: 9999px; font-size: 0.875rem; font-weight: 600; }
        .status.running { background: #166534; color: #4ade80; }
        .status.idle { background: #854d0e; color: #fde047; }
        main { padding: 2rem; max-width: 960px; margin: 0 auto; }
        button { background: #38bdf8; color: #0f172a; border: 0; border-radius: 8px; padding: 0.75rem 1.5rem; font-size: 1rem; font-weight: 600; cursor: pointer; }
        button:disabled { opacity: 0.5; cursor: wait; }
        .card { background: #1e293b; border: 1px solid #334155; border-radius: 12px; padding: 1.5rem; margin-top: 1.5rem; }
        .card .label { font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.05em; color: #94a3b8; margin-bottom: 0.5rem; }
        .card.error { border-color: #f87171; color: #fca5a5; }
        ol { padding-left: 1.5rem; line-height: 1.8; }
        .meta { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 1rem; margin-top: 1rem; color: #cbd5e1; }
        pre { white-space: pre-wrap; font-size: 0.8rem; color: #94a3b8; }
        .hidden { display: none; }
        .footer { text-align: center; padding: 1rem; color: #475569; font-size: 0.75rem; }
        .footer a { color: #64748b; }
    </style>
</head>
<body>
    <div class="header">
        <h1>TrendGoat</h1>
        <span class="status {{.State}}" id="status">{{.State}}</span>
    </div>
    <main>
        <button id="run" onclick="runScraper()">Run scraper</button>
        <div class="card hidden" id="result">
            <div class="label">Trending now</div>
            <ol id="trends"></ol>
            <div class="meta">
                <div><div class="label">IP address</div><span id="ip"></span></div>
                <div><div class="label">Started</div><span id="start"></span></div>
                <div><div class="label">Finished</div><span id="end"></span></div>
                <div><div class="label">Record</div><span id="uid"></span></div>
            </div>
        </div>
        <div class="card error hidden" id="error"></div>
        <div class="card">
            <div class="label">Stats</div>
            <pre id="stats">loading...</pre>
        </div>
    </main>
    <div class="footer">TrendGoat {{.Version}}{{if .MetricsPath}} · <a href="{{.MetricsPath}}">metrics</a>{{end}}</div>
    <script>
        async function runScraper() {
            const btn = document.getElementById('run');
            const errBox = document.getElementById('error');
            btn.disabled = true;
            btn.textContent = 'Running...';
            errBox.classList.add('hidden');
            try {
                const r = await fetch('/run-scraper');
                const d = await r.json();
                if (!r.ok) throw new Error(d.error || ('HTTP ' + r.status));
                const list = document.getElementById('trends');
                list.innerHTML = '';
                (d.trends || []).forEach(t => {
                    const li = document.createElement('li');
                    li.textContent = t;
                    list.appendChild(li);
                });
                document.getElementById('ip').textContent = d.ip_address;
                document.getElementById('start').textContent = d.start_time;
                document.getElementById('end').textContent = d.end_time;
                document.getElementById('uid').textContent = d.unique_id;
                document.getElementById('result').classList.remove('hidden');
            } catch (e) {
                errBox.textContent = e.message;
                errBox.classList.remove('hidden');
            } finally {
                btn.disabled = false;
                btn.textContent = 'Run scraper';
                refresh();
            }
        }
        async function refresh() {
            try {
                const r = await fetch('/api/stats');
                const d = await r.json();
                document.getElementById('status').textContent = d.state || 'idle';
                document.getElementById('status').className = 'status ' + (d.state || 'idle');
                document.getElementById('stats').textContent = JSON.stringify(d, null, 2);
            } catch(e) {}
        }
        setInterval(refresh, 5000);
        refresh();
    </script>
</body>
</html>`

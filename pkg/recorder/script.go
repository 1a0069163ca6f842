package recorder

// captureScript is injected into every page during a recording session. It
// buffers user interactions on the page; typed values are never read. Text
// inputs get a profile key guess from field metadata (name, id,
// placeholder, autocomplete, label) so the draft can fill them from a
// profile later. Injection is idempotent.
const captureScript = `
(() => {
    if (window.__unlistRecorder) return;

    window.__unlistRecorder = {
        actions: [],
        lastClickTime: 0,
        lastClickSelector: ''
    };

    function cssSelector(el) {
        if (el.id) return '#' + CSS.escape(el.id);
        if (el.name && (el.tagName === 'INPUT' || el.tagName === 'SELECT' || el.tagName === 'TEXTAREA')) {
            return el.tagName.toLowerCase() + '[name="' + CSS.escape(el.name) + '"]';
        }
        let path = [];
        while (el && el.nodeType === 1) {
            let selector = el.tagName.toLowerCase();
            if (el.id) { path.unshift('#' + CSS.escape(el.id)); break; }
            let sib = el, nth = 1;
            while (sib = sib.previousElementSibling) { if (sib.tagName === el.tagName) nth++; }
            if (nth > 1) selector += ':nth-of-type(' + nth + ')';
            path.unshift(selector);
            el = el.parentElement;
        }
        return path.join(' > ');
    }

    function getLabel(field) {
        if (field.id) {
            const label = document.querySelector('label[for="' + CSS.escape(field.id) + '"]');
            if (label) return label.textContent.trim();
        }
        const parent = field.closest('label');
        if (parent) return parent.textContent.trim();
        const prev = field.previousElementSibling;
        if (prev && prev.tagName === 'LABEL') return prev.textContent.trim();
        return field.getAttribute('aria-label') || null;
    }

    function inferProfileKey(field) {
        const hints = [
            field.name || '',
            field.id || '',
            field.placeholder || '',
            field.getAttribute('autocomplete') || '',
            (getLabel(field) || '').toLowerCase()
        ].join(' ').toLowerCase();

        if (/first.?name|given.?name|fname/i.test(hints)) return 'firstName';
        if (/last.?name|family.?name|lname|surname/i.test(hints)) return 'lastName';
        if (/email/i.test(hints)) return 'email';
        if (/phone|tel/i.test(hints)) return 'phone';
        if (/street|address(?!.*city|.*state|.*zip)/i.test(hints)) return 'address';
        if (/city/i.test(hints)) return 'city';
        if (/state|province/i.test(hints)) return 'state';
        if (/zip|postal/i.test(hints)) return 'zip';
        if (/dob|birth|birthday/i.test(hints)) return 'dob';
        return null;
    }

    // Blur means the user finished with the field.
    document.addEventListener('blur', (e) => {
        const el = e.target;
        if (!el || !['INPUT', 'SELECT', 'TEXTAREA'].includes(el.tagName)) return;
        if (el.type === 'hidden') return;

        const selector = cssSelector(el);
        const profileKey = inferProfileKey(el);
        const label = getLabel(el);

        if (el.tagName === 'SELECT') {
            window.__unlistRecorder.actions.push({
                action: 'select',
                selector: selector,
                profile_key: profileKey,
                value: null,
                url: null,
                element_text: null,
                label: label,
                timestamp: Date.now()
            });
        } else if (el.type === 'checkbox' || el.type === 'radio') {
            window.__unlistRecorder.actions.push({
                action: 'check',
                selector: selector,
                profile_key: null,
                value: el.checked ? 'true' : 'false',
                url: null,
                element_text: null,
                label: label,
                timestamp: Date.now()
            });
        } else {
            window.__unlistRecorder.actions.push({
                action: 'fill',
                selector: selector,
                profile_key: profileKey,
                value: null,
                url: null,
                element_text: null,
                label: label,
                timestamp: Date.now()
            });
        }
    }, true);

    // Clicks on interactive elements. Form fields are covered by blur.
    document.addEventListener('click', (e) => {
        const el = e.target.closest('button, a, input[type="submit"], [role="button"], .btn');
        if (!el) return;
        if (['INPUT', 'SELECT', 'TEXTAREA'].includes(el.tagName) && el.type !== 'submit') return;

        const selector = cssSelector(el);
        const now = Date.now();

        if (selector === window.__unlistRecorder.lastClickSelector && now - window.__unlistRecorder.lastClickTime < 500) {
            return;
        }
        window.__unlistRecorder.lastClickSelector = selector;
        window.__unlistRecorder.lastClickTime = now;

        window.__unlistRecorder.actions.push({
            action: 'click',
            selector: selector,
            profile_key: null,
            value: null,
            url: null,
            element_text: (el.textContent || el.value || '').trim().substring(0, 100),
            label: null,
            timestamp: now
        });
    }, true);
})()
`

// extractScript drains the page's action buffer. Read and clear happen in
// one evaluation so concurrent pushes are never dropped.
const extractScript = `(() => { const a = (window.__unlistRecorder || {}).actions || []; window.__unlistRecorder.actions = []; return a; })()`

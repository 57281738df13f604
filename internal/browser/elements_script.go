package browser

import "fmt"

// candidatesScript builds the in-page scan that feeds the locator.
// Interactive mode sweeps the conventional form surface; full mode
// sweeps every rendered element for the low-confidence strategies.
func candidatesScript(scanAll bool, maxCandidates int) string {
	query := `'input, textarea, select, button, a[href], [contenteditable="true"], [role="button"], [role="textbox"]'`
	if scanAll {
		query = `'*'`
	}

	return fmt.Sprintf(`(() => {
		try {
			const result = [];
			const nodes = document.querySelectorAll(%s);
			const max = %d;

			const generateSelector = (el) => {
				const tag = el.tagName.toLowerCase();

				const qaAttrs = ['data-test-id', 'data-testid', 'data-test', 'data-qa'];
				for (const attr of qaAttrs) {
					const val = el.getAttribute(attr);
					if (val) return tag + '[' + attr + '="' + val + '"]';
				}

				if (el.id && /^[a-zA-Z]/.test(el.id) && !el.id.includes(' ')) {
					return '#' + el.id;
				}

				if (el.name && ['input', 'select', 'textarea', 'button'].includes(tag)) {
					return tag + '[name="' + el.name + '"]';
				}

				const ariaLabel = el.getAttribute('aria-label');
				if (ariaLabel && ariaLabel.length < 80) {
					return tag + '[aria-label="' + ariaLabel + '"]';
				}

				if (el.placeholder) {
					return tag + '[placeholder="' + el.placeholder + '"]';
				}

				let path = [];
				let current = el;
				let depth = 0;
				while (current && current.tagName && depth < 4) {
					const t = current.tagName.toLowerCase();
					if (current.id) {
						path.unshift('#' + current.id);
						break;
					}
					const index = Array.from(current.parentNode?.children || []).indexOf(current);
					if (index >= 0) {
						path.unshift(t + ':nth-child(' + (index + 1) + ')');
					}
					current = current.parentElement;
					depth++;
				}

				return path.length > 0 ? path.join(' > ') : tag;
			};

			const labelTextFor = (el) => {
				if (el.labels && el.labels.length > 0) {
					return el.labels[0].innerText || '';
				}
				const labelledBy = el.getAttribute('aria-labelledby');
				if (labelledBy) {
					const ref = document.getElementById(labelledBy.split(' ')[0]);
					if (ref) return ref.innerText || '';
				}
				return '';
			};

			let order = 0;
			for (let i = 0; i < nodes.length && result.length < max; i++) {
				const el = nodes[i];
				const tag = el.tagName.toLowerCase();
				if (['script', 'style', 'meta', 'link', 'head', 'html'].includes(tag)) continue;

				const rect = el.getBoundingClientRect();
				const style = window.getComputedStyle(el);
				const visible = (
					rect.width > 0 &&
					rect.height > 0 &&
					style.display !== 'none' &&
					style.visibility !== 'hidden' &&
					style.opacity !== '0'
				);
				if (!visible) continue;

				order++;

				const role = el.getAttribute('role') || '';
				const editable = el.isContentEditable ||
					tag === 'textarea' ||
					(tag === 'input' && !['button', 'submit', 'checkbox', 'radio'].includes(el.type)) ||
					role === 'textbox';
				const clickable = (
					['a', 'button', 'select'].includes(tag) ||
					(tag === 'input' && ['button', 'submit'].includes(el.type)) ||
					role === 'button' ||
					role === 'link' ||
					el.onclick !== null ||
					style.cursor === 'pointer'
				);

				let text = (el.innerText || el.textContent || '').trim();
				if (text.length > 120) text = text.substring(0, 120);

				result.push({
					tag: tag,
					selector: generateSelector(el),
					text: text,
					ariaLabel: el.getAttribute('aria-label') || '',
					placeholder: el.getAttribute('placeholder') || '',
					labelText: (labelTextFor(el) || '').trim(),
					name: el.getAttribute('name') || '',
					role: role,
					type: el.getAttribute('type') || '',
					editable: editable,
					clickable: clickable,
					visible: true,
					docOrder: order,
					x: rect.left,
					y: rect.top,
					width: rect.width,
					height: rect.height
				});
			}

			return result;
		} catch (e) {
			return [];
		}
	})()`, query, maxCandidates)
}

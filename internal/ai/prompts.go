package ai

const invoiceSystemPrompt = "You are a meticulous document digitization assistant for a restaurant back office. Return ONLY JSON."

const invoicePrompt = `Extract the line items and totals from this supplier invoice image.

Return ONLY a JSON object with this shape:
{
  "orders": [{"description": "string", "qty": number, "price": number, "total": number}],
  "details": {"invoice_number": "string", "supplier_name": "string", "invoice_date": "YYYY-MM-DD", "due_date": "YYYY-MM-DD"},
  "totals": {"grand_total": number},
  "status": "ok" | "invalid",
  "invalid_reason": "string, only when status is invalid"
}

Rules:
- Copy qty, price and total exactly as printed. Do not correct arithmetic.
- If the document is not a supplier invoice, set status to "invalid" and explain why in invalid_reason.
- Omit no line items; the orders array must cover the whole document.`

const receiptSystemPrompt = "You are a point-of-sale document analyst. Return ONLY JSON."

const receiptPrompt = `Decide whether this image is an end-of-day sales summary receipt (Z-read) and extract the total sales figure.

Return ONLY a JSON object with this shape:
{
  "is_valid_sales_receipt": boolean,
  "total_sales": number,
  "reason": "string, only when not a valid sales receipt"
}`

const insightSystemPrompt = "You are a restaurant business analyst. Return ONLY JSON matching the requested shape."

const insightShape = `Return ONLY a JSON object with this shape:
{
  "name": "string",
  "typeOfInsight": "string",
  "insightType": "cost_saving" | "risk" | "opportunity" | "trend",
  "urgency": 1-5,
  "impactValue": number,
  "impactUnit": "string",
  "overall_summary": "string",
  "recommendations": ["string"],
  "analysis_details": "string",
  "data_confidence_level": "low" | "medium" | "high",
  "financial_risk_level": "low" | "medium" | "high",
  "time_to_impact": "string"
}`

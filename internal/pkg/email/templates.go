package email

// BaseTemplate is the layout every email is wrapped in.
const BaseTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Subject}}</title>
    <style>
        body {
            margin: 0;
            padding: 0;
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background-color: #f4f6fb;
            color: #1f2937;
        }
        .container {
            max-width: 560px;
            margin: 0 auto;
            padding: 40px 20px;
        }
        .card {
            background: #ffffff;
            border-radius: 12px;
            padding: 32px;
            border: 1px solid #e5e7eb;
        }
        .logo {
            text-align: center;
            margin-bottom: 24px;
        }
        .logo h1 {
            font-size: 26px;
            color: #0f766e;
            margin: 0;
        }
        h2 {
            font-size: 22px;
            margin: 0 0 16px;
        }
        p {
            color: #4b5563;
            font-size: 16px;
            line-height: 1.6;
            margin: 0 0 16px;
        }
        .code {
            font-size: 32px;
            letter-spacing: 8px;
            font-weight: 700;
            text-align: center;
            color: #0f766e;
            margin: 24px 0;
        }
        .amount {
            color: #0f766e;
            font-weight: 600;
        }
        .footer {
            text-align: center;
            margin-top: 32px;
            color: #9ca3af;
            font-size: 12px;
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="card">
            <div class="logo">
                <h1>Opticash</h1>
            </div>
            {{.Content}}
        </div>
        <div class="footer">
            <p>You received this email because you have an Opticash wallet.</p>
            <p>Opticash will never ask you for your PIN or one-time code.</p>
        </div>
    </div>
</body>
</html>
`

// PaymentIntentTemplate carries the one-time code confirming a transfer.
const PaymentIntentTemplate = `
<h2>Confirm your transfer</h2>
<p>Hi {{.Name}},</p>
<p>Use the code below to confirm the transfer you just started.</p>
<div class="code">{{.OTPCode}}</div>
{{if .ExpiresInMinutes}}<p>The code expires in {{.ExpiresInMinutes}} minutes.</p>{{end}}
<p>If you did not start this transfer, ignore this email and change your PIN.</p>
`

// TransferSentTemplate is the sender's receipt.
const TransferSentTemplate = `
<h2>Transfer successful</h2>
<p>Hi {{.Name}},</p>
<p>You sent <span class="amount">{{money .Amount .Currency}}</span> to {{.RecipientName}}.</p>
`

// TransferReceivedTemplate is the recipient's receipt.
const TransferReceivedTemplate = `
<h2>You received money</h2>
<p>Hi {{.Name}},</p>
<p>{{.SenderName}} sent you <span class="amount">{{money .Amount .Currency}}</span>.</p>
`

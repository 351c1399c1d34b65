package service

import "fmt"

func verificationCodeEmailTemplate(code, appName string) (string, string) {
	subject := "Verification code"
	body := fmt.Sprintf(`Your %s verification code is:

%s

Enter it on the verification page to confirm your email address.

This code expires in 5 minutes.

If you didn't create an account, you can safely ignore this email.

Best,
The %s Team`, appName, code, appName)

	return subject, body
}

func resetPasswordEmailTemplate(resetURL, appName string) (string, string) {
	subject := "Password reset"
	body := fmt.Sprintf(`You requested to reset your %s password. Use this link to choose a new one:
%s

This link expires in 60 minutes and can only be used once.

If you didn't request this, you can safely ignore this email. Your password won't be changed.

Best,
The %s Team`, appName, resetURL, appName)

	return subject, body
}

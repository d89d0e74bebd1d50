package entity

// ValidationResult итог локальной проверки кандидата.
// Отказ всегда содержит причину, принятие — никогда.
type ValidationResult struct {
	Accepted bool
	Reason   string
}

// Accept возвращает положительный результат проверки.
func Accept() ValidationResult {
	return ValidationResult{Accepted: true}
}

// Reject возвращает отказ с причиной.
func Reject(reason string) ValidationResult {
	if reason == "" {
		reason = "File rejected"
	}
	return ValidationResult{Reason: reason}
}

// Err превращает отказ в ошибку приёма файла, для принятого файла возвращает nil.
func (v ValidationResult) Err() error {
	if v.Accepted {
		return nil
	}
	return NewIntakeRejection(v.Reason)
}

package desensitize

const mask = "xxxxx"

var (
	// URLPasswordRule URL 形式连接串中的密码 (postgres://u:p@h -> postgres://u:xxxxx@h)
	URLPasswordRule = MustNewContentRule(
		"url_password",
		`([A-Za-z][A-Za-z0-9+.-]*://[^:/@\s"]+):([^@\s"]+)@`,
		"$1:"+mask+"@",
	)

	// MySQLPasswordRule go-sql-driver 形式 DSN 中的密码 (u:p@tcp(h) -> u:xxxxx@tcp(h))
	MySQLPasswordRule = MustNewContentRule(
		"mysql_password",
		`([^\s:/@"]+):([^@\s"/]+)@(tcp|unix)\(`,
		"$1:"+mask+"@$3(",
	)

	// KeywordPasswordRule key=value 形式的密码参数
	KeywordPasswordRule = MustNewContentRule(
		"keyword_password",
		`(?i)\b(password|passwd|pwd)=([^\s&;"]+)`,
		"$1="+mask,
	)

	// PasswordFieldRule JSON 中的 password 字段
	PasswordFieldRule = MustNewFieldRule(
		"password_field",
		"password",
		`.*`,
		mask,
	)
)

// CredentialRules 数据库凭据相关的内置规则
func CredentialRules() []Rule {
	return []Rule{
		URLPasswordRule,
		MySQLPasswordRule,
		KeywordPasswordRule,
		PasswordFieldRule,
	}
}

package render

import "text/template"

const header = "; Managed by barmanctl. Local changes will be overwritten.\n"

const mainConfTemplate = header + `[barman]
barman_home = {{ .Home }}
barman_user = {{ .User }}
log_file = {{ .Logfile }}
log_level = {{ .LogLevel }}
{{- with compression .Compression }}
compression = {{ . }}
{{- end }}
{{- with .PreBackupScript }}
pre_backup_script = {{ . }}
{{- end }}
{{- with .PostBackupScript }}
post_backup_script = {{ . }}
{{- end }}
configuration_files_directory = {{ .ConfDir }}
{{- with .CustomLines }}
{{ . }}
{{- end }}
`

const serverConfTemplate = header + `[{{ .Name }}]
{{- with .Server.Description }}
description = {{ . }}
{{- end }}
{{- if inactive .Server.Active }}
active = false
{{- end }}
ssh_command = {{ .Server.SSHCommand }}
conninfo = {{ .Server.Conninfo }}
{{- with .Server.EffectiveCompression }}
compression = {{ . }}
{{- end }}
{{- with .Server.PreBackupScript }}
pre_backup_script = {{ . }}
{{- end }}
{{- with .Server.PostBackupScript }}
post_backup_script = {{ . }}
{{- end }}
{{- with .Server.CustomLines }}
{{ . }}
{{- end }}
`

const logrotateTemplate = `{{ .Logfile }} {
    missingok
    notifempty
    weekly
    rotate 4
    compress
    delaycompress
    create 0640 {{ .User }} {{ .Group }}
}
`

var templates = template.Must(template.New("barmanctl").Funcs(funcMap).Parse(
	`{{ define "main" }}` + mainConfTemplate + `{{ end }}` +
		`{{ define "server" }}` + serverConfTemplate + `{{ end }}` +
		`{{ define "logrotate" }}` + logrotateTemplate + `{{ end }}`))

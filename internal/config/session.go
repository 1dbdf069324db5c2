package config

import (
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Kargones/nwrfc/internal/adapter/nwrfc"
	"github.com/Kargones/nwrfc/internal/constants"
)

var (
	clientPattern = regexp.MustCompile(`^[0-9]{3}$`)
	sysnrPattern  = regexp.MustCompile(`^[0-9]{2}$`)
)

// Session — параметры логона в систему SAP.
//
// Реализует slog.LogValuer: пароль в логи не попадает.
type Session struct {
	// Dest — имя destination из sapnwrfc.ini; остальные поля его дополняют.
	Dest   string `yaml:"dest" env:"RFC_DEST"`
	ASHost string `yaml:"ashost" env:"RFC_ASHOST"`
	SysNr  string `yaml:"sysnr" env:"RFC_SYSNR"`
	MSHost string `yaml:"mshost" env:"RFC_MSHOST"`
	MSServ string `yaml:"msserv" env:"RFC_MSSERV"`
	SysID  string `yaml:"sysid" env:"RFC_SYSID"`
	Group  string `yaml:"group" env:"RFC_GROUP"`
	Client string `yaml:"client" env:"RFC_CLIENT"`
	User   string `yaml:"user" env:"RFC_USER"`
	Passwd string `yaml:"passwd" env:"RFC_PASSWD"`
	Lang   string `yaml:"lang" env:"RFC_LANG" env-default:"EN"`
	// Extra — дополнительные параметры нативной библиотеки (trace, saprouter, snc_*).
	// В окружении: RFC_EXTRA="trace:1,saprouter:/H/router/S/3299".
	Extra map[string]string `yaml:"extra" env:"RFC_EXTRA"`
}

// Params возвращает новую копию параметров соединения.
// Пустые поля не передаются, ключи Extra приводятся к нижнему регистру.
func (s Session) Params() nwrfc.ConnectionParams {
	p := make(nwrfc.ConnectionParams, 12+len(s.Extra))
	for k, v := range s.Extra {
		if v != "" {
			p[strings.ToLower(k)] = v
		}
	}
	for k, v := range map[string]string{
		constants.ParamDest:   s.Dest,
		constants.ParamASHost: s.ASHost,
		constants.ParamSysNr:  s.SysNr,
		constants.ParamMSHost: s.MSHost,
		constants.ParamMSServ: s.MSServ,
		constants.ParamSysID:  s.SysID,
		constants.ParamGroup:  s.Group,
		constants.ParamClient: s.Client,
		constants.ParamUser:   s.User,
		constants.ParamPasswd: s.Passwd,
		constants.ParamLang:   s.Lang,
	} {
		if v != "" {
			p[k] = v
		}
	}
	return p
}

// LogValue реализует slog.LogValuer.
func (s Session) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, 8)
	for _, kv := range [][2]string{
		{"dest", s.Dest},
		{"ashost", s.ASHost},
		{"sysnr", s.SysNr},
		{"mshost", s.MSHost},
		{"sysid", s.SysID},
		{"group", s.Group},
		{"client", s.Client},
		{"user", s.User},
		{"lang", s.Lang},
	} {
		if kv[1] != "" {
			attrs = append(attrs, slog.String(kv[0], kv[1]))
		}
	}
	if s.Passwd != "" {
		attrs = append(attrs, slog.String("passwd", "***"))
	}
	if len(s.Extra) > 0 {
		attrs = append(attrs, slog.Int("extra", len(s.Extra)))
	}
	return slog.GroupValue(attrs...)
}

// Validate проверяет, что задан способ подключения и форматы полей.
func (s Session) Validate() error {
	var errs []error
	if s.Dest == "" && s.ASHost == "" && s.MSHost == "" {
		errs = append(errs, errors.New("session: нужен dest, ashost или mshost"))
	}
	if s.MSHost != "" && s.Dest == "" && s.Group == "" {
		errs = append(errs, errors.New("session: для mshost нужен group"))
	}
	if s.Client != "" && !clientPattern.MatchString(s.Client) {
		errs = append(errs, errors.New("session: client должен состоять из трёх цифр"))
	}
	if s.SysNr != "" && !sysnrPattern.MatchString(s.SysNr) {
		errs = append(errs, errors.New("session: sysnr должен состоять из двух цифр"))
	}
	return errors.Join(errs...)
}
